package chatengine

import (
	"context"
	"strings"

	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
)

// DefaultCondenseQuestionTemplate 把追问改写为独立问题的默认模板
const DefaultCondenseQuestionTemplate = `Given a conversation (between Human and Assistant) and a follow up message from Human, rewrite the message to be a standalone question that captures all relevant context from the conversation.

<Chat History>
{chat_history}

<Follow Up Message>
{question}

<Standalone question>
`

// CondensePromptRenderer 由历史与新消息渲染压缩提示词
type CondensePromptRenderer func(history []types.Message, message string) string

// CondenseTemplate 返回基于模板的渲染器，模板变量为 {chat_history} 与 {question}
func CondenseTemplate(tmpl string) CondensePromptRenderer {
	return func(history []types.Message, message string) string {
		return renderTemplate(tmpl, map[string]string{
			"chat_history": FormatHistory(history),
			"question":     message,
		})
	}
}

// FormatHistory 将历史格式化为 "role: content" 行
func FormatHistory(history []types.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// Condenser 把 (历史, 新消息) 压缩为可独立检索的问题
type Condenser struct {
	llm    Completer
	render CondensePromptRenderer
	logger *zap.Logger
}

// NewCondenser 创建压缩器，render 为 nil 时使用默认模板
func NewCondenser(llm Completer, render CondensePromptRenderer, logger *zap.Logger) *Condenser {
	if render == nil {
		render = CondenseTemplate(DefaultCondenseQuestionTemplate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Condenser{
		llm:    llm,
		render: render,
		logger: logger.With(zap.String("component", "condenser")),
	}
}

// Condense 返回独立问题。历史为空时直接返回原消息，不调用模型。
// 模型调用不重试，失败时返回 CONDENSATION 错误。
func (c *Condenser) Condense(ctx context.Context, history []types.Message, message string) (string, error) {
	if len(history) == 0 {
		return message, nil
	}

	prompt := c.render(history, message)
	out, err := c.llm.Complete(ctx, []types.Message{{Role: types.RoleUser, Content: prompt}})
	if err != nil {
		return "", classifyError(ctx, types.ErrCondensation, "condense question", err)
	}

	c.logger.Debug("question condensed",
		zap.Int("history", len(history)),
		zap.String("condensed", out))
	return out, nil
}
