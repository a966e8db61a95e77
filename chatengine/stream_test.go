package chatengine_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/testutil"
	"github.com/BaSui01/chatflow/testutil/fixtures"
	"github.com/BaSui01/chatflow/testutil/mocks"
	"github.com/BaSui01/chatflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamChat_Completes(t *testing.T) {
	ctx := testutil.TestContext(t)
	synth := mocks.NewMockSynthesizer().WithStreamChunks("Par", "is", ".")
	retriever := mocks.NewMockRetriever(fixtures.FranceNode())

	engine, err := chatengine.NewContextChatEngine(retriever, synth)
	require.NoError(t, err)

	stream, err := engine.StreamChat(ctx, franceQuestion)
	require.NoError(t, err)
	assert.Equal(t, chatengine.StatusActive, stream.Status())

	var deltas []string
	var final *chatengine.ChatResponse
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if chunk.Done {
			final = chunk.Response
			continue
		}
		deltas = append(deltas, chunk.Delta)
	}

	assert.Equal(t, []string{"Par", "is", "."}, deltas)
	require.NotNil(t, final)
	assert.Equal(t, "Paris.", final.Text)
	assert.Equal(t, []chatengine.Citation{{SourceID: "doc1", Score: 0.9}}, final.Citations())
	assert.Equal(t, chatengine.StatusCompleted, stream.Status())
	assert.NoError(t, stream.Err())
	assert.Equal(t, chatengine.StateIdle, engine.State())

	// 结束后 Recv 持续返回 EOF，Close 无操作
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, stream.Close())
	assert.Equal(t, chatengine.StatusCompleted, stream.Status())

	history, err := engine.History(ctx)
	require.NoError(t, err)
	testutil.AssertMessagesEqual(t, []types.Message{
		{Role: types.RoleUser, Content: franceQuestion},
		{Role: types.RoleAssistant, Content: "Paris."},
	}, history)
}

func TestStreamChat_Collect(t *testing.T) {
	ctx := testutil.TestContext(t)
	engine, err := chatengine.NewSimpleChatEngine(mocks.NewMockSynthesizer())
	require.NoError(t, err)

	stream, err := engine.StreamChat(ctx, "echo me")
	require.NoError(t, err)
	resp, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "echo me", resp.Text)
	assert.Equal(t, "echo me", stream.Text())
}

func TestStreamChat_CancelMidStream(t *testing.T) {
	tests := []struct {
		name   string
		cancel func(stream *chatengine.StreamingResponse, cancel context.CancelFunc)
	}{
		{"context cancelled", func(_ *chatengine.StreamingResponse, cancel context.CancelFunc) { cancel() }},
		{"stream closed", func(stream *chatengine.StreamingResponse, _ context.CancelFunc) {
			_ = stream.Close()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(testutil.TestContext(t))
			defer cancel()
			gate := make(chan struct{})
			synth := mocks.NewMockSynthesizer().WithStreamChunks("Hel", "lo", " world").WithGate(gate)

			engine, err := chatengine.NewSimpleChatEngine(synth)
			require.NoError(t, err)

			stream, err := engine.StreamChat(ctx, "first")
			require.NoError(t, err)
			assert.Equal(t, chatengine.StateStreaming, engine.State())

			gate <- struct{}{}
			chunk, err := stream.Recv()
			require.NoError(t, err)
			assert.Equal(t, "Hel", chunk.Delta)

			tt.cancel(stream, cancel)

			_, err = stream.Recv()
			assert.ErrorIs(t, err, chatengine.ErrCancelled)
			assert.Equal(t, chatengine.StatusCancelled, stream.Status())
			assert.Equal(t, chatengine.StateIdle, engine.State())
			assert.Equal(t, "Hel", stream.Text())

			// 取消后只保留用户消息
			bg := testutil.TestContext(t)
			history, err := engine.History(bg)
			require.NoError(t, err)
			testutil.AssertMessagesEqual(t, []types.Message{{Role: types.RoleUser, Content: "first"}}, history)

			// 下一轮成功，并把未答复的用户消息作为历史
			synth.WithGate(nil)
			resp, err := engine.Chat(bg, "second")
			require.NoError(t, err)
			assert.Equal(t, "second", resp.Text)
			testutil.AssertMessagesEqual(t, []types.Message{
				{Role: types.RoleUser, Content: "first"},
				{Role: types.RoleUser, Content: "second"},
			}, synth.LastPrompt())

			history, err = engine.History(bg)
			require.NoError(t, err)
			testutil.AssertRoles(t, history, types.RoleUser, types.RoleUser, types.RoleAssistant)
		})
	}
}

func TestStreamChat_AbandonedContextReleasesEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(testutil.TestContext(t))
	gate := make(chan struct{})
	synth := mocks.NewMockSynthesizer().WithStreamChunks("never", "sent").WithGate(gate)

	engine, err := chatengine.NewSimpleChatEngine(synth)
	require.NoError(t, err)

	stream, err := engine.StreamChat(ctx, "abandoned")
	require.NoError(t, err)
	cancel()

	// 不再调用 Recv，引擎也应被释放
	testutil.AssertEventuallyTrue(t, func() bool {
		return stream.Status() == chatengine.StatusCancelled
	}, 5*time.Second)

	bg := testutil.TestContext(t)
	synth.WithGate(nil)
	var chatErr error
	ok := testutil.WaitFor(func() bool {
		_, chatErr = engine.Chat(bg, "next")
		return !errors.Is(chatErr, chatengine.ErrBusy)
	}, 5*time.Second)
	require.True(t, ok)
	require.NoError(t, chatErr)

	history, err := engine.History(bg)
	require.NoError(t, err)
	testutil.AssertRoles(t, history, types.RoleUser, types.RoleUser, types.RoleAssistant)
}

func TestStreamChat_SynthesisErrorMidStream(t *testing.T) {
	ctx := testutil.TestContext(t)
	boom := errors.New("connection reset")
	synth := mocks.NewMockSynthesizer().WithStreamChunks("partial").WithStreamError(boom)

	engine, err := chatengine.NewSimpleChatEngine(synth)
	require.NoError(t, err)

	stream, err := engine.StreamChat(ctx, "hello")
	require.NoError(t, err)

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.Delta)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, chatengine.ErrSynthesis)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, chatengine.StatusFailed, stream.Status())
	assert.Equal(t, err, stream.Err())

	// 终止错误是粘滞的
	_, again := stream.Recv()
	assert.Equal(t, err, again)

	history, err := engine.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, chatengine.StateIdle, engine.State())
}

func TestStreamChat_StartErrorsReturnedDirectly(t *testing.T) {
	ctx := testutil.TestContext(t)

	t.Run("synthesizer refuses to start", func(t *testing.T) {
		synth := mocks.NewMockSynthesizer().WithStartError(errors.New("quota exceeded"))
		engine, err := chatengine.NewSimpleChatEngine(synth)
		require.NoError(t, err)

		stream, err := engine.StreamChat(ctx, "hello")
		assert.Nil(t, stream)
		assert.ErrorIs(t, err, chatengine.ErrSynthesis)
		assert.Equal(t, chatengine.StateIdle, engine.State())

		history, err := engine.History(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 1)

		// 忙标志已释放，阻塞调用不受影响
		_, err = engine.Chat(ctx, "retry")
		require.NoError(t, err)
	})

	t.Run("retrieval fails before streaming", func(t *testing.T) {
		retriever := mocks.NewMockRetriever().WithError(errors.New("index offline"))
		synth := mocks.NewMockSynthesizer()
		engine, err := chatengine.NewContextChatEngine(retriever, synth)
		require.NoError(t, err)

		_, err = engine.StreamChat(ctx, "hello")
		assert.ErrorIs(t, err, chatengine.ErrRetrieval)
		assert.Zero(t, synth.StreamCalls())

		// 忙标志已释放
		_, err = engine.StreamChat(ctx, "again")
		assert.ErrorIs(t, err, chatengine.ErrRetrieval)
	})
}

func TestStreamChat_BusyUntilFinished(t *testing.T) {
	ctx := testutil.TestContext(t)
	gate := make(chan struct{})
	synth := mocks.NewMockSynthesizer().WithStreamChunks("a", "b").WithGate(gate)

	engine, err := chatengine.NewSimpleChatEngine(synth)
	require.NoError(t, err)

	stream, err := engine.StreamChat(ctx, "first")
	require.NoError(t, err)

	_, err = engine.Chat(ctx, "second")
	assert.ErrorIs(t, err, chatengine.ErrBusy)
	assert.ErrorIs(t, engine.Reset(ctx), chatengine.ErrBusy)

	close(gate)
	resp, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "ab", resp.Text)

	_, err = engine.Chat(ctx, "second")
	require.NoError(t, err)
}
