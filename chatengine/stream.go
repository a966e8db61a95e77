package chatengine

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/chatflow/types"
	"go.opentelemetry.io/otel/trace"
)

// StreamingResponse 单消费者、有限、可取消的增量序列。
//
// 典型用法:
//
//	stream, err := engine.StreamChat(ctx, "hi")
//	if err != nil { ... }
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Recv()
//	    if errors.Is(err, io.EOF) { break }
//	    if err != nil { ... }
//	    fmt.Print(chunk.Delta)
//	}
//
// 调用方放弃 ctx（取消）即可释放引擎，即使不再调用 Recv。
type StreamingResponse struct {
	engine *engine
	plan   *turnPlan
	deltas <-chan TextDelta

	ctx         context.Context
	cancel      context.CancelFunc
	stopRelease func() bool

	spanCtx context.Context
	span    trace.Span
	start   time.Time

	mu     sync.Mutex
	buf    strings.Builder
	status TurnStatus
	err    error
}

func newStreamingResponse(
	e *engine,
	ctx context.Context,
	cancel context.CancelFunc,
	spanCtx context.Context,
	span trace.Span,
	start time.Time,
	plan *turnPlan,
	deltas <-chan TextDelta,
) *StreamingResponse {
	s := &StreamingResponse{
		engine:  e,
		plan:    plan,
		deltas:  deltas,
		ctx:     ctx,
		cancel:  cancel,
		spanCtx: spanCtx,
		span:    span,
		start:   start,
		status:  StatusActive,
	}
	s.stopRelease = context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.finishLocked(StatusCancelled, newCancelledError(context.Cause(ctx)))
	})
	return s
}

// Recv 返回下一个增量。
// 最后一个块 Done=true；之后返回 io.EOF。取消或失败后返回终止错误。
func (s *StreamingResponse) Recv() (ChatResponseChunk, error) {
	s.mu.Lock()
	if s.status != StatusActive {
		err := s.terminalErrLocked()
		s.mu.Unlock()
		return ChatResponseChunk{}, err
	}
	s.mu.Unlock()

	select {
	case d, ok := <-s.deltas:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != StatusActive {
			return ChatResponseChunk{}, s.terminalErrLocked()
		}
		if !ok {
			return s.completeLocked()
		}
		if d.Err != nil {
			err := s.plan.wrap(classifyError(s.ctx, types.ErrSynthesis, "stream response", d.Err))
			status := StatusFailed
			if types.IsErrorCode(err, types.ErrCancelled) {
				status = StatusCancelled
			}
			s.finishLocked(status, err)
			return ChatResponseChunk{}, err
		}
		s.buf.WriteString(d.Text)
		return ChatResponseChunk{Delta: d.Text}, nil

	case <-s.ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		s.finishLocked(StatusCancelled, newCancelledError(context.Cause(s.ctx)))
		return ChatResponseChunk{}, s.terminalErrLocked()
	}
}

// completeLocked 生成通道正常关闭：写入助手消息并返回 Done 块
func (s *StreamingResponse) completeLocked() (ChatResponseChunk, error) {
	// 通道关闭可能是取消导致的
	if err := s.ctx.Err(); err != nil {
		s.finishLocked(StatusCancelled, newCancelledError(context.Cause(s.ctx)))
		return ChatResponseChunk{}, s.err
	}

	resp, err := s.engine.complete(context.WithoutCancel(s.spanCtx), s.plan, s.buf.String())
	if err != nil {
		s.finishLocked(StatusFailed, err)
		return ChatResponseChunk{}, err
	}
	s.finishLocked(StatusCompleted, nil)
	return ChatResponseChunk{Done: true, Response: resp}, nil
}

// finishLocked 只生效一次：记录结果、停止生成并释放引擎
func (s *StreamingResponse) finishLocked(status TurnStatus, err error) {
	if s.status != StatusActive {
		return
	}
	s.status = status
	s.err = err
	s.stopRelease()
	s.cancel()
	s.engine.finishStream(status, s.span, s.start, err)
}

func (s *StreamingResponse) terminalErrLocked() error {
	if s.status == StatusCompleted {
		return io.EOF
	}
	return s.err
}

// Close 取消未完成的轮次，已结束时无操作
func (s *StreamingResponse) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(StatusCancelled, newCancelledError(context.Canceled))
	return nil
}

// Status 返回轮次结束方式，未结束时为 StatusActive
func (s *StreamingResponse) Status() TurnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err 返回终止错误，正常完成或未结束时为 nil
func (s *StreamingResponse) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Text 返回目前累积的文本
func (s *StreamingResponse) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Collect 读完整个流并返回最终响应
func (s *StreamingResponse) Collect() (*ChatResponse, error) {
	for {
		chunk, err := s.Recv()
		if err != nil {
			return nil, err
		}
		if chunk.Done {
			return chunk.Response, nil
		}
	}
}
