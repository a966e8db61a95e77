// Package providers 汇集 llm.Provider 的具体实现，以及各实现共用的
// 错误映射、模型选择与重试逻辑。
//
//   - openai：基于 go-openai 的 Chat Completions 与 Embeddings 客户端，
//     兼容 OpenAI 协议的第三方服务可通过 BaseURL 接入。
//   - echo：回显最后一条用户消息，用于离线演示与冒烟测试。
//   - RetryProvider：对限流、超时与 5xx 做指数退避重试，流式请求只重试建连。
package providers
