// Copyright (c) ChatFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ChatFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 chatengine、rag、llm、
api 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Message: 对话消息（Role、Content、CreatedAt、Metadata），追加后不可变
  - Role: 消息角色：system / user / assistant / tool
  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable 与 Cause

# 主要能力

  - Context 传播：WithTraceID / WithSessionID
  - 错误工具链：GetErrorCode / IsErrorCode / IsRetryable（基于 errors.As）
  - 错误码匹配：errors.Is 对同一 ErrorCode 的 *Error 返回 true
*/
package types
