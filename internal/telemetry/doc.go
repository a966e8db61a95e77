// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 ChatFlow 的对话引擎提供 TracerProvider 与 MeterProvider。
// 遥测禁用时返回全局 noop 实现，不连接任何外部服务。
package telemetry
