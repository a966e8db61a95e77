/*
包 server 组装 ChatFlow 的 HTTP 入口并管理服务器生命周期。

# 核心类型

  - Manager：封装 net/http.Server，负责监听、后台服务、优雅关闭与
    异步错误传播。Run 绑定到 context，context 取消即触发优雅关闭。
  - Config：监听地址、读写超时、空闲超时、最大请求头与关闭超时。
  - RouterDependencies / NewRouter：用 chi 组装 /v1/sessions 与 /health
    路由，并挂载请求 ID、访问日志、指标、追踪、CORS、API Key 与限流
    中间件。
  - MetricsHandler：独立端口上的 /metrics 端点。

# 说明

流式接口不受 WriteTimeout 约束：SSE 处理器通过 http.ResponseController
为自身的连接清除写截止时间。
*/
package server
