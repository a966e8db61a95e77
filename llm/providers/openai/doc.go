// Package openai 基于 github.com/sashabaranov/go-openai 实现 llm.Provider
// 与 rag.Embedder。
package openai
