/*
包 metrics 提供 ChatFlow 的指标采集，覆盖对话轮次、HTTP 与 LLM 调用三个维度。

# 核心类型

  - Collector：基于 Prometheus 的收集器，实现 chatengine.TurnObserver，
    指标通过 promauto.With 注册到调用方传入的 Registerer。
  - OTelRecorder：基于 OpenTelemetry metric API 的 TurnObserver，
    与 telemetry 包初始化的 MeterProvider 配合，经 OTLP 导出。
  - InstrumentedProvider：包装 llm.Provider，记录请求耗时与 Token 用量。

# 主要指标

  - 轮次：按 engine/status/streaming 计数，轮次与阶段耗时直方图，
    忙拒绝计数，检索节点数直方图。
  - HTTP：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM：请求总数、耗时与 prompt/completion Token 用量。
*/
package metrics
