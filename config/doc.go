// Package config 提供 ChatFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 CHATFLOW）的顺序加载，
// 并提供 FlowChatEngine 步骤描述符（FlowStepConfig）的 YAML 定义。
// Reloader 轮询配置文件，修改后重新加载校验并通知回调；
// 运行中只有日志级别会即时生效，其余配置段需要重启。
package config
