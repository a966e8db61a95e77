// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertMessagesEqual(t, expected, actual)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertMessagesEqual 断言两个消息序列的角色与内容一致（忽略时间戳与元数据）
func AssertMessagesEqual(t *testing.T, expected, actual []types.Message) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("message count mismatch: expected %d, got %d\nexpected:\n%s\nactual:\n%s",
			len(expected), len(actual), RenderPrompt(expected), RenderPrompt(actual))
		return
	}
	for i := range expected {
		if expected[i].Role != actual[i].Role {
			t.Errorf("message[%d] role mismatch: expected %s, got %s", i, expected[i].Role, actual[i].Role)
		}
		if expected[i].Content != actual[i].Content {
			t.Errorf("message[%d] content mismatch:\nexpected: %q\nactual:   %q", i, expected[i].Content, actual[i].Content)
		}
	}
}

// AssertRoles 断言消息序列的角色顺序
func AssertRoles(t *testing.T, msgs []types.Message, roles ...types.Role) {
	t.Helper()

	got := make([]types.Role, len(msgs))
	for i, m := range msgs {
		got[i] = m.Role
	}
	if len(got) != len(roles) {
		t.Errorf("role sequence mismatch: expected %v, got %v", roles, got)
		return
	}
	for i := range roles {
		if got[i] != roles[i] {
			t.Errorf("role sequence mismatch: expected %v, got %v", roles, got)
			return
		}
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	if !WaitFor(condition, timeout) {
		t.Errorf("condition not met within %v", timeout)
	}
}

// =============================================================================
// ⏱️ 等待辅助
// =============================================================================

// WaitFor 轮询等待条件满足
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}

// WaitForChannel 等待通道产出一个值
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// =============================================================================
// 📝 提示词辅助
// =============================================================================

// RenderPrompt 把消息序列渲染为 "role: content" 块，用于逐字节比较
func RenderPrompt(msgs []types.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// =============================================================================
// 🌊 流式辅助
// =============================================================================

// CollectStreamContent 收集流式块的文本
func CollectStreamContent(ch <-chan llm.StreamChunk) string {
	var b strings.Builder
	for chunk := range ch {
		b.WriteString(chunk.Delta)
	}
	return b.String()
}

// SendChunksToChannel 把文本依次作为流式块发送，发送完后关闭通道
func SendChunksToChannel(deltas ...string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(deltas))
	for i, d := range deltas {
		ch <- llm.StreamChunk{Index: i, Delta: d}
	}
	close(ch)
	return ch
}
