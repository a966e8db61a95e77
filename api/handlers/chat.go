package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/chatflow/api"
	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 对话接口 Handler
// =============================================================================

// ChatHandler 会话与对话接口处理器
type ChatHandler struct {
	sessions *SessionRegistry
	logger   *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(sessions *SessionRegistry, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleCreateSession 创建或恢复会话
// @Summary 创建会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body api.CreateSessionRequest false "会话请求"
// @Success 201 {object} Response "会话信息"
// @Router /v1/sessions [post]
func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := DecodeJSONBody(w, r, &req, true, h.logger); err != nil {
		return
	}

	s, err := h.sessions.Open(req.ID)
	if err != nil {
		WriteEngineError(w, err, h.logger)
		return
	}
	WriteSuccessStatus(w, http.StatusCreated, s)
}

// HandleListSessions 列出已打开的会话
// @Summary 会话列表
// @Tags 会话
// @Produce json
// @Success 200 {object} Response "会话列表"
// @Router /v1/sessions [get]
func (h *ChatHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.sessions.List())
}

// HandleChat 阻塞式对话
// @Summary 对话
// @Tags 对话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.ChatRequest true "对话请求"
// @Success 200 {object} api.ChatResponse "对话结果"
// @Failure 409 {object} Response "会话忙"
// @Router /v1/sessions/{id}/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	id, engine, req, ok := h.prepare(w, r)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := engine.Chat(r.Context(), req.Message)
	if err != nil {
		WriteEngineError(w, err, h.logger.With(zap.String("session_id", id)))
		return
	}

	h.logger.Info("chat turn",
		zap.String("session_id", id),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("duration", time.Since(start)),
	)
	WriteSuccess(w, api.NewChatResponse(id, resp))
}

// HandleStream SSE 流式对话。客户端断开时请求上下文取消，本轮随之取消。
// @Summary 流式对话
// @Tags 对话
// @Accept json
// @Produce text/event-stream
// @Param id path string true "会话 ID"
// @Param request body api.ChatRequest true "对话请求"
// @Success 200 {string} string "SSE 流"
// @Failure 409 {object} Response "会话忙"
// @Router /v1/sessions/{id}/chat/stream [post]
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id, engine, req, ok := h.prepare(w, r)
	if !ok {
		return
	}
	logger := h.logger.With(zap.String("session_id", id))

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", logger)
		return
	}

	// 启动阶段的错误（忙、检索失败等）仍以普通 JSON 返回
	stream, err := engine.StreamChat(r.Context(), req.Message)
	if err != nil {
		WriteEngineError(w, err, logger)
		return
	}
	defer stream.Close()

	// 流式响应不受服务器 WriteTimeout 约束
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sse := &sseWriter{w: w, flusher: flusher}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if errors.Is(err, chatengine.ErrCancelled) && r.Context().Err() != nil {
				logger.Info("stream cancelled by client")
				return
			}
			logger.Warn("stream failed", zap.Error(err))
			_ = sse.event("error", NewErrorInfo(AsTypedError(err)))
			return
		}

		var writeErr error
		if chunk.Done {
			writeErr = sse.event("done", api.NewChatResponse(id, chunk.Response))
		} else {
			writeErr = sse.event("delta", api.StreamDelta{Delta: chunk.Delta})
		}
		if writeErr != nil {
			// 写失败说明连接已断开，关闭流即取消本轮
			logger.Info("stream write failed, cancelling turn", zap.Error(writeErr))
			return
		}
	}
}

// HandleHistory 返回会话历史
// @Summary 会话历史
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} api.HistoryResponse "历史消息"
// @Router /v1/sessions/{id}/history [get]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	engine, err := h.sessions.Get(id)
	if err != nil {
		WriteEngineError(w, err, h.logger)
		return
	}

	history, err := engine.History(r.Context())
	if err != nil {
		WriteEngineError(w, err, h.logger)
		return
	}
	if history == nil {
		history = []types.Message{}
	}
	WriteSuccess(w, api.HistoryResponse{SessionID: id, Messages: history})
}

// HandleReset 清空会话历史。进行中的轮次未结束时返回 409。
// @Summary 清空历史
// @Tags 会话
// @Param id path string true "会话 ID"
// @Success 204 "已清空"
// @Failure 409 {object} Response "会话忙"
// @Router /v1/sessions/{id}/history [delete]
func (h *ChatHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	engine, err := h.sessions.Get(id)
	if err != nil {
		WriteEngineError(w, err, h.logger)
		return
	}
	if err := engine.Reset(r.Context()); err != nil {
		WriteEngineError(w, err, h.logger)
		return
	}
	h.logger.Info("session reset", zap.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// prepare 解析会话与请求体，失败时已写出错误响应
func (h *ChatHandler) prepare(w http.ResponseWriter, r *http.Request) (string, chatengine.ChatEngine, *api.ChatRequest, bool) {
	id := chi.URLParam(r, "id")
	engine, err := h.sessions.Get(id)
	if err != nil {
		WriteEngineError(w, err, h.logger)
		return "", nil, nil, false
	}
	if !ValidateContentType(w, r, h.logger) {
		return "", nil, nil, false
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, false, h.logger); err != nil {
		return "", nil, nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "message is required"), h.logger)
		return "", nil, nil, false
	}
	return id, engine, &req, true
}

// =============================================================================
// 📡 SSE 输出
// =============================================================================

type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// event 写出一个 SSE 事件，data 为单行 JSON
func (s *sseWriter) event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
