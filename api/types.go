package api

import (
	"time"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/types"
)

// =============================================================================
// 会话类型
// =============================================================================

// CreateSessionRequest 创建会话请求。
// ID 为空时由服务端生成；传入已有 ID 可恢复持久化的会话历史。
type CreateSessionRequest struct {
	ID string `json:"id,omitempty" example:"3f2b8c1e-6a4d-4c9b-9b1e-2d7f5a0c8e11"`
}

// Session 会话信息
type Session struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// 对话类型
// =============================================================================

// ChatRequest 对话请求
type ChatRequest struct {
	// 用户消息
	Message string `json:"message" binding:"required" example:"What is the capital of France?"`
}

// Source 检索来源
type Source struct {
	SourceID string         `json:"source_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	SessionID      string   `json:"session_id"`
	Text           string   `json:"text"`
	Sources        []Source `json:"sources"`
	CondensedQuery string   `json:"condensed_query,omitempty"`
}

// StreamDelta 流式增量事件
type StreamDelta struct {
	Delta string `json:"delta"`
}

// HistoryResponse 会话历史
type HistoryResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []types.Message `json:"messages"`
}

// NewChatResponse 从引擎结果构造响应
func NewChatResponse(sessionID string, resp *chatengine.ChatResponse) *ChatResponse {
	out := &ChatResponse{
		SessionID:      sessionID,
		Text:           resp.Text,
		Sources:        make([]Source, 0, len(resp.Sources)),
		CondensedQuery: resp.CondensedQuery,
	}
	for _, n := range resp.Sources {
		out.Sources = append(out.Sources, Source{
			SourceID: n.SourceID,
			Text:     n.Text,
			Score:    n.Score,
			Metadata: n.Metadata,
		})
	}
	return out
}
