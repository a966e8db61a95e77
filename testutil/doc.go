/*
Package testutil 提供 ChatFlow 测试的共享工具和辅助函数。

# 概述

testutil 为各包的单元测试提供统一的辅助能力，避免重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertRoles / AssertEventuallyTrue
  - 提示词工具: RenderPrompt 把消息序列渲染为可逐字节比较的文本
  - 流式辅助: CollectStreamContent / SendChunksToChannel，
    用于 LLM 流式响应测试

# 子包

  - testutil/mocks: MockProvider（LLM Provider）、MockSynthesizer（生成器）、
    MockRetriever（检索器）、MockChatStore（历史存储），支持 Builder 模式与错误注入
  - testutil/fixtures: 测试数据，包括检索节点与对话历史样例

# 使用示例

	ctx := testutil.TestContext(t)
	synth := mocks.NewMockSynthesizer().WithResponse("hello")
	engine, err := chatengine.NewSimpleChatEngine(synth)
	require.NoError(t, err)
*/
package testutil
