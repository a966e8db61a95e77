// Package bootstrap 按 config.Config 组装 ChatFlow 的运行时组件：
// 日志、LLM Provider、向量检索、历史存储、指标与遥测，以及按会话
// 创建对话引擎的工厂。serve 与 chat 两个命令共用这里的装配逻辑。
package bootstrap
