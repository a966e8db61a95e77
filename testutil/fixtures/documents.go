// =============================================================================
// 📦 测试数据工厂 - 检索节点与对话历史
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// FranceNode 单节点检索结果
func FranceNode() rag.Node {
	return rag.Node{SourceID: "doc1", Text: "Paris is the capital of France.", Score: 0.9}
}

// CapitalNodes 按分数降序的一组节点
func CapitalNodes() rag.RetrievedContext {
	return rag.RetrievedContext{
		{SourceID: "doc1", Text: "Paris is the capital of France.", Score: 0.9},
		{SourceID: "doc2", Text: "Berlin is the capital of Germany.", Score: 0.7},
		{SourceID: "doc3", Text: "Madrid is the capital of Spain.", Score: 0.4},
	}
}

// CapitalDocuments 带向量的文档，向量维度 3
func CapitalDocuments() []rag.Document {
	return []rag.Document{
		{ID: "doc1", Content: "Paris is the capital of France.", Embedding: []float64{1, 0, 0}},
		{ID: "doc2", Content: "Berlin is the capital of Germany.", Embedding: []float64{0, 1, 0}},
		{ID: "doc3", Content: "Madrid is the capital of Spain.", Embedding: []float64{0, 0, 1}},
	}
}

// Conversation 生成 n 个完整轮次的历史
func Conversation(turns int) []types.Message {
	msgs := make([]types.Message, 0, turns*2)
	for i := 0; i < turns; i++ {
		msgs = append(msgs,
			types.NewUserMessage(fmt.Sprintf("question %d", i+1)),
			types.NewAssistantMessage(fmt.Sprintf("answer %d", i+1)))
	}
	return msgs
}
