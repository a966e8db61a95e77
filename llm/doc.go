/*
包 llm 提供对话引擎与模型服务之间的统一接入层。

# 概述

[Provider] 屏蔽不同模型服务在接口、鉴权与流式协议上的差异，
对上层暴露一致的 [ChatRequest] / [ChatResponse] 与流式 [StreamChunk]。
chatengine 的 LLMSynthesizer 只依赖此接口。

# 流式约定

Stream 返回的通道按顺序投递增量；以错误结束时最后一个块的 Err 非空，
随后通道关闭。ctx 取消后生产方必须停止发送并关闭通道。

# 子包

  - providers：OpenAI 兼容实现、echo 实现、错误映射与重试包装
  - tokenizer：基于 tiktoken 的 Token 计数，供对话历史按预算截断
*/
package llm
