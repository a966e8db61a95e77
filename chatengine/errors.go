package chatengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/chatflow/types"
)

// 错误哨兵，按错误码匹配：errors.Is(err, ErrBusy)。
// 哨兵本身不可修改，返回给调用方的错误总是新建的实例。
var (
	// ErrBusy 引擎正在处理另一个轮次
	ErrBusy = types.NewError(types.ErrEngineBusy, "chat engine is busy")

	// ErrCancelled 轮次被调用方取消
	ErrCancelled = types.NewError(types.ErrCancelled, "turn cancelled")

	// ErrConfiguration 引擎或 flow 配置错误
	ErrConfiguration = types.NewError(types.ErrConfiguration, "invalid configuration")

	// ErrCondensation 问题压缩失败
	ErrCondensation = types.NewError(types.ErrCondensation, "condensation failed")

	// ErrRetrieval 检索失败
	ErrRetrieval = types.NewError(types.ErrRetrieval, "retrieval failed")

	// ErrSynthesis 生成失败
	ErrSynthesis = types.NewError(types.ErrSynthesis, "synthesis failed")
)

func newBusyError(engine string) *types.Error {
	return types.NewError(types.ErrEngineBusy, fmt.Sprintf("chat engine %q is processing another turn", engine))
}

func newConfigurationError(format string, args ...any) *types.Error {
	return types.NewError(types.ErrConfiguration, fmt.Sprintf(format, args...))
}

func newCancelledError(cause error) *types.Error {
	return types.WrapError(types.ErrCancelled, "turn cancelled", cause)
}

// classifyError 为外部调用失败打上阶段错误码。
// ctx 已取消时一律视为取消，已带引擎错误码的错误原样返回。
func classifyError(ctx context.Context, code types.ErrorCode, msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if ctx.Err() != nil {
		return newCancelledError(err)
	}
	if types.IsErrorCode(err, code) {
		return err
	}
	return types.WrapError(code, msg, err)
}

// StepError 表示 flow 中某个步骤失败。
// Err 保留原始错误码，Turn 是失败时的轮次数据，仅供诊断。
type StepError struct {
	Step       string
	Capability Capability
	Turn       *TurnContext
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("flow step %q (%s) failed: %v", e.Step, e.Capability, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
