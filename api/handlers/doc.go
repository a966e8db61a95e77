/*
Package handlers 提供 ChatFlow HTTP API 的请求处理器实现。

# 概述

handlers 把按会话隔离的对话引擎暴露为 HTTP 接口：创建会话、阻塞式
与 SSE 流式对话、读取与清空历史，以及健康检查。所有 Handler 均遵循
标准 net/http 接口，路由由 internal/server 使用 chi 组装。

# 核心类型

  - SessionRegistry: 会话 ID 到 ChatEngine 的注册表，按需通过工厂创建引擎
  - ChatHandler: 会话、对话、流式对话与历史接口
  - HealthHandler: 健康检查（/health, /healthz）
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，含 code、message、retryable 标记

# 主要能力

  - ErrorCode → HTTP 状态码映射，引擎忙返回 409
  - SSE 输出 delta / done / error 事件，客户端断开即取消本轮
  - 可插拔健康检查：RegisterCheck 注册 Redis、数据库等依赖
*/
package handlers
