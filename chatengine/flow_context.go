package chatengine

import (
	"fmt"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// TurnContext 的内置字段名
const (
	FieldMessage          = "message"
	FieldHistory          = "history"
	FieldCondensedQuery   = "condensed_query"
	FieldRetrievedContext = "retrieved_context"
	FieldPrompt           = "prompt"
	FieldResponse         = "response"
)

// builtinFields 内置字段集合
var builtinFields = map[string]bool{
	FieldMessage:          true,
	FieldHistory:          true,
	FieldCondensedQuery:   true,
	FieldRetrievedContext: true,
	FieldPrompt:           true,
	FieldResponse:         true,
}

// engineOwnedFields 只能由引擎写入的字段
var engineOwnedFields = map[string]bool{
	FieldMessage:  true,
	FieldHistory:  true,
	FieldPrompt:   true,
	FieldResponse: true,
}

// TurnContext 是一个 flow 轮次内步骤之间共享的数据。
// 轮次结束后丢弃，只在 StepError 中保留用于诊断。
type TurnContext struct {
	Message          string
	History          []types.Message
	CondensedQuery   string
	RetrievedContext rag.RetrievedContext
	Prompt           []types.Message
	Response         string

	// Values 自定义步骤产出的字段
	Values map[string]any

	produced  map[string]bool
	placement ContextPlacement
	// contextWrites 记录 retrieved_context 被写入的次数
	contextWrites int
}

func newTurnContext(history []types.Message, message string) *TurnContext {
	return &TurnContext{
		Message:   message,
		History:   history,
		Values:    make(map[string]any),
		produced:  make(map[string]bool),
		placement: PlacementNone,
	}
}

// Has 谓词语义下的字段存在性：history 要求非空，
// 其他字段要求已被某个步骤产出。
func (tc *TurnContext) Has(field string) bool {
	if field == FieldHistory {
		return len(tc.History) > 0
	}
	return tc.provided(field)
}

// provided 输入检查语义：message 与 history 总是可用
func (tc *TurnContext) provided(field string) bool {
	switch field {
	case FieldMessage, FieldHistory:
		return true
	}
	if tc.produced[field] {
		return true
	}
	_, ok := tc.Values[field]
	return ok
}

// Get 按名称读取字段
func (tc *TurnContext) Get(field string) (any, bool) {
	switch field {
	case FieldMessage:
		return tc.Message, true
	case FieldHistory:
		return tc.History, true
	}
	if builtinFields[field] {
		if !tc.produced[field] {
			return nil, false
		}
		switch field {
		case FieldCondensedQuery:
			return tc.CondensedQuery, true
		case FieldRetrievedContext:
			return tc.RetrievedContext, true
		case FieldPrompt:
			return tc.Prompt, true
		case FieldResponse:
			return tc.Response, true
		}
	}
	v, ok := tc.Values[field]
	return v, ok
}

// Set 写入字段。自定义步骤可以写 condensed_query、retrieved_context
// 与任意自定义键；message、history、prompt、response 只读。
func (tc *TurnContext) Set(field string, value any) error {
	if engineOwnedFields[field] {
		return newConfigurationError("field %q is owned by the engine", field)
	}
	switch field {
	case FieldCondensedQuery:
		s, ok := value.(string)
		if !ok {
			return newConfigurationError("field %q expects string, got %T", field, value)
		}
		tc.SetCondensedQuery(s)
	case FieldRetrievedContext:
		nodes, ok := value.(rag.RetrievedContext)
		if !ok {
			return newConfigurationError("field %q expects rag.RetrievedContext, got %T", field, value)
		}
		tc.SetRetrievedContext(nodes)
	default:
		tc.Values[field] = value
	}
	return nil
}

// SetCondensedQuery 写入检索问题
func (tc *TurnContext) SetCondensedQuery(q string) {
	tc.CondensedQuery = q
	tc.produced[FieldCondensedQuery] = true
}

// SetRetrievedContext 写入检索结果
func (tc *TurnContext) SetRetrievedContext(nodes rag.RetrievedContext) {
	tc.RetrievedContext = nodes
	tc.produced[FieldRetrievedContext] = true
	tc.contextWrites++
}

func (tc *TurnContext) setPrompt(prompt []types.Message) {
	tc.Prompt = prompt
	tc.produced[FieldPrompt] = true
}

func (tc *TurnContext) setResponse(text string) {
	tc.Response = text
	tc.produced[FieldResponse] = true
}

func (tc *TurnContext) String() string {
	return fmt.Sprintf("TurnContext{message=%q history=%d condensed_query=%v retrieved_context=%v prompt=%v response=%v values=%d}",
		tc.Message, len(tc.History),
		tc.produced[FieldCondensedQuery], tc.produced[FieldRetrievedContext],
		tc.produced[FieldPrompt], tc.produced[FieldResponse], len(tc.Values))
}
