// Copyright 2026 ChatFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package chatengine 提供检索增强对话的轮次编排核心。

# 概述

ChatEngine 接收一条用户消息，决定是否压缩问题、是否检索，组装提示词，
调用生成模型，并更新对话历史。所有实现共享同一个轮次状态机：

	Idle → Condensing? → Retrieving? → Synthesizing → Streaming? → Completed → Idle

失败时经 Failed 回到 Idle；流式轮次被取消时直接 Streaming → Idle。

# 实现

  - SimpleChatEngine：不检索，直接对话
  - ContextChatEngine：用原始消息检索，上下文放入系统消息
  - CondenseQuestionChatEngine：用压缩后的问题检索，上下文折叠进最后一条用户消息
  - CondensePlusContextChatEngine：用压缩后的问题检索，上下文放入系统消息
  - FlowChatEngine：可配置的步骤流水线，四种固定策略都是它的特例

# 历史一致性

每个轮次先追加用户消息，只有成功时才追加助手消息；失败或取消时
历史中只保留该用户消息。同一实例同一时刻只处理一个轮次，
第二个调用立即返回 ErrBusy，不排队。

# 流式输出

StreamChat 返回 StreamingResponse，通过 Recv 拉取增量，最后一个块
Done=true，之后 Recv 返回 io.EOF。Close 或取消 ctx 会终止轮次，
不写入助手消息。
*/
package chatengine
