/*
Package main 提供 ChatFlow 的命令行入口。

# 子命令

  - serve: 启动 HTTP API（会话、对话、SSE 流式对话、历史管理）与独立的 /metrics 端口
  - chat: 终端内的流式对话 REPL，支持 /history、/reset、/exit
  - validate-flow: 静态校验 flow 步骤定义（YAML 文件或配置中的 engine.flow）
  - version: 版本信息

# 配置

配置优先级：默认值 → --config 指定的 YAML → CHATFLOW_ 前缀的环境变量。
启动前会加载 --env-file 指定的 dotenv 文件（默认 .env，不存在时跳过）。

版本信息通过 ldflags 注入：

	go build -ldflags "-X main.Version=v1.0.0 -X main.GitCommit=$(git rev-parse HEAD)" ./cmd/chatflow
*/
package main
