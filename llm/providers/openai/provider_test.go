package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-test", Timeout: 5 * time.Second}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestProvider_Completion(t *testing.T) {
	var got map[string]any
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Paris."},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14},
		})
	})

	p := New(cfg, zaptest.NewLogger(t))
	assert.Equal(t, "openai", p.Name())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{
			types.NewSystemMessage("Be brief."),
			types.NewUserMessage("Capital of France?"),
		},
		MaxTokens:   64,
		Temperature: 0.5,
	})
	require.NoError(t, err)

	text, err := llm.FirstContent(resp)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", text)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, types.RoleAssistant, resp.Choices[0].Message.Role)

	// 未指定模型时使用配置的默认模型
	assert.Equal(t, "gpt-test", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Capital of France?", msgs[1].(map[string]any)["content"])
}

func TestProvider_CompletionErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
		{http.StatusServiceUnavailable, types.ErrServiceUnavailable, true},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{
					"error": map[string]any{"message": "nope", "type": "test_error"},
				})
			})
			p := New(cfg, nil)

			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []types.Message{types.NewUserMessage("hi")},
			})
			require.Error(t, err)
			te, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, tt.retryable, te.Retryable)
			assert.Equal(t, tt.status, te.HTTPStatus)
			assert.Equal(t, "openai", te.Provider)
		})
	}
}

func sseHandler(t *testing.T, events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, e := range events {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", e)
			flusher.Flush()
		}
	}
}

func TestProvider_Stream(t *testing.T) {
	cfg := newTestServer(t, sseHandler(t,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-test","choices":[{"index":0,"delta":{"role":"assistant","content":"Par"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-test","choices":[{"index":0,"delta":{"content":"is."},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-test","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		`[DONE]`,
	))
	p := New(cfg, zaptest.NewLogger(t))

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("Capital of France?")},
	})
	require.NoError(t, err)

	var text string
	var usage *llm.ChatUsage
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		text += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	assert.Equal(t, "Paris.", text)
	assert.Equal(t, "stop", finish)
	require.NotNil(t, usage)
	assert.Equal(t, 7, usage.TotalTokens)
}

func TestProvider_StreamStartError(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit"},
		})
	})
	p := New(cfg, nil)

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{})
	assert.Nil(t, ch)
	assert.True(t, types.IsErrorCode(err, types.ErrRateLimited))
}

func TestProvider_StreamCancel(t *testing.T) {
	release := make(chan struct{})
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `data: {"id":"c1","choices":[{"index":0,"delta":{"content":"Hel"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)
	p := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Stream(ctx, &llm.ChatRequest{})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "Hel", first.Delta)
	cancel()

	// 取消后通道关闭，不再产生错误块
	for chunk := range ch {
		assert.Nil(t, chunk.Err)
	}
}
