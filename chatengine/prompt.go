package chatengine

import (
	"regexp"
	"strings"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// DefaultContextTemplate 系统消息中的上下文块
const DefaultContextTemplate = "Context information is below.\n" +
	"--------------------\n" +
	"{context_str}\n" +
	"--------------------\n"

// DefaultQATemplate 上下文折叠进用户消息时使用的模板
const DefaultQATemplate = "Context information is below.\n" +
	"---------------------\n" +
	"{context_str}\n" +
	"---------------------\n" +
	"Given the context information and not prior knowledge, answer the query.\n" +
	"Query: {query_str}\n" +
	"Answer: "

// ContextPlacement 检索上下文在提示词中的位置
type ContextPlacement string

const (
	// PlacementNone 不注入上下文
	PlacementNone ContextPlacement = "none"
	// PlacementSystem 放入历史之前的系统消息
	PlacementSystem ContextPlacement = "system"
	// PlacementInline 用 QA 模板包裹最后一条用户消息
	PlacementInline ContextPlacement = "inline"
)

// ParsePlacement 解析注入方式，空字符串视为 system
func ParsePlacement(s string) (ContextPlacement, bool) {
	switch ContextPlacement(s) {
	case "", PlacementSystem:
		return PlacementSystem, true
	case PlacementNone, PlacementInline:
		return ContextPlacement(s), true
	}
	return "", false
}

var templateVarRegexp = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// renderTemplate 替换 {name} 形式的变量，未知变量保留原样
func renderTemplate(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 {
		return text
	}
	return templateVarRegexp.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// contextString 节点文本以空行连接
func contextString(nodes rag.RetrievedContext) string {
	return strings.Join(nodes.Texts(), "\n\n")
}

// promptSpec 组装提示词所需的全部输入
type promptSpec struct {
	systemPrompt    string
	contextTemplate string
	qaTemplate      string
	placement       ContextPlacement
	nodes           rag.RetrievedContext
	history         []types.Message
	message         string
}

// assemblePrompt 组装最终提示词：[系统消息?] + 历史 + 用户消息。
// 检索结果为空时完全省略上下文块。
func assemblePrompt(p promptSpec) []types.Message {
	var system []string
	if sp := strings.TrimSpace(p.systemPrompt); sp != "" {
		system = append(system, sp)
	}

	user := p.message
	if len(p.nodes) > 0 {
		switch p.placement {
		case PlacementSystem:
			system = append(system, renderTemplate(p.contextTemplate, map[string]string{
				"context_str": contextString(p.nodes),
			}))
		case PlacementInline:
			user = renderTemplate(p.qaTemplate, map[string]string{
				"context_str": contextString(p.nodes),
				"query_str":   p.message,
			})
		}
	}

	out := make([]types.Message, 0, len(p.history)+2)
	if len(system) > 0 {
		out = append(out, types.Message{Role: types.RoleSystem, Content: strings.Join(system, "\n")})
	}
	out = append(out, p.history...)
	out = append(out, types.Message{Role: types.RoleUser, Content: user})
	return out
}
