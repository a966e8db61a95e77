package chatengine

import "github.com/BaSui01/chatflow/rag"

// ChatResponse 一个完成的轮次的结果
type ChatResponse struct {
	// Text 助手回复全文
	Text string `json:"text"`

	// Sources 本轮检索到的上下文，未检索时为空
	Sources rag.RetrievedContext `json:"sources"`

	// CondensedQuery 压缩后的检索问题，仅用于诊断，不写入历史
	CondensedQuery string `json:"condensed_query,omitempty"`
}

// Citation 来源引用
type Citation struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Citations 返回 Sources 的 (SourceID, Score) 列表
func (r *ChatResponse) Citations() []Citation {
	out := make([]Citation, 0, len(r.Sources))
	for _, n := range r.Sources {
		out = append(out, Citation{SourceID: n.SourceID, Score: n.Score})
	}
	return out
}

func (r *ChatResponse) String() string {
	return r.Text
}

// ChatResponseChunk 流式输出的一个增量。
// Done=true 的块是最后一个，携带完整的 Response。
type ChatResponseChunk struct {
	Delta    string        `json:"delta"`
	Done     bool          `json:"done"`
	Response *ChatResponse `json:"response,omitempty"`
}
