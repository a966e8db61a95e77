/*
Package memory 提供单个会话的有序对话历史（ChatMemory）。

Memory 只追加消息，唯一的删除操作是 Reset。Snapshot 按 Token 预算从
最旧的消息开始截断，返回副本而不修改底层缓冲区。消息通过 ChatStore
持久化，内置三种实现：

  - InMemoryChatStore: 进程内存储（默认）
  - RedisChatStore: 每个会话一个 Redis List
  - SQLChatStore: 基于 gorm 的 chat_messages 表（sqlite / postgres / mysql）
*/
package memory
