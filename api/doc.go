// Package api 定义 ChatFlow HTTP 接口的请求与响应类型。
//
// # 接口概览
//
//	POST   /v1/sessions                 创建（或恢复）会话
//	POST   /v1/sessions/{id}/chat       阻塞式对话
//	POST   /v1/sessions/{id}/chat/stream SSE 流式对话，断开连接即取消本轮
//	GET    /v1/sessions/{id}/history    读取会话历史
//	DELETE /v1/sessions/{id}/history    清空会话历史
//	GET    /health                      健康检查
//
// # 认证
//
// 配置了 server.api_keys 时，/v1 下的接口需要携带 X-API-Key 请求头:
//
//	X-API-Key: your-api-key
//
// # 流式事件
//
// 流式接口输出 text/event-stream，事件类型为 delta、done 与 error:
//
//	event: delta
//	data: {"delta":"Par"}
//
//	event: done
//	data: {"text":"Paris.","sources":[...]}
//
// 所有非流式响应使用统一的 handlers.Response 包装。
package api
