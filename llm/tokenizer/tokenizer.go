package tokenizer

import (
	"github.com/BaSui01/chatflow/types"
)

// perMessageOverhead 每条消息的角色标记与分隔符开销。
const perMessageOverhead = 4

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// CountMessage 返回单条消息占用的 token 数，包括角色与分隔符开销。
func CountMessage(t Tokenizer, msg types.Message) (int, error) {
	content, err := t.CountTokens(msg.Content)
	if err != nil {
		return 0, err
	}
	role, err := t.CountTokens(string(msg.Role))
	if err != nil {
		return 0, err
	}
	return content + role + perMessageOverhead, nil
}

// CountMessages 返回消息列表的总 token 数.
func CountMessages(t Tokenizer, msgs []types.Message) (int, error) {
	total := 0
	for _, msg := range msgs {
		n, err := CountMessage(t, msg)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// ForModel 返回适合该模型的分词器：已知 OpenAI 系列模型使用 tiktoken，
// 编码不可用时自动回退到估算器；其他模型直接使用估算器。
func ForModel(model string) Tokenizer {
	if _, ok := lookupEncoding(model); !ok {
		return NewEstimatorTokenizer()
	}
	return &fallbackTokenizer{
		primary:  NewTiktokenTokenizer(model),
		fallback: NewEstimatorTokenizer(),
	}
}

// fallbackTokenizer 在 primary 出错时使用 fallback 计数。
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.fallback.Name()
}
