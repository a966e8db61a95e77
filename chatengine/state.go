package chatengine

import "fmt"

// TurnState 轮次状态
type TurnState string

const (
	StateIdle         TurnState = "idle"
	StateCondensing   TurnState = "condensing"
	StateRetrieving   TurnState = "retrieving"
	StateSynthesizing TurnState = "synthesizing"
	StateStreaming    TurnState = "streaming"
	StateCompleted    TurnState = "completed"
	StateFailed       TurnState = "failed"
)

// validTransitions 合法的状态转换。
// Retrieving → Condensing 只出现在先检索后压缩的 flow 中；
// 各进行中状态 → Idle 是被取消的轮次。
var validTransitions = map[TurnState][]TurnState{
	StateIdle:         {StateCondensing, StateRetrieving, StateSynthesizing, StateFailed},
	StateCondensing:   {StateRetrieving, StateSynthesizing, StateFailed, StateIdle},
	StateRetrieving:   {StateCondensing, StateSynthesizing, StateFailed, StateIdle},
	StateSynthesizing: {StateStreaming, StateCompleted, StateFailed, StateIdle},
	StateStreaming:    {StateCompleted, StateFailed, StateIdle},
	StateCompleted:    {StateIdle},
	StateFailed:       {StateIdle},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to TurnState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From TurnState
	To   TurnState
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid turn state transition: %s -> %s", e.From, e.To)
}

// TurnStatus 轮次结束方式
type TurnStatus string

const (
	StatusActive    TurnStatus = "active"
	StatusCompleted TurnStatus = "completed"
	StatusFailed    TurnStatus = "failed"
	StatusCancelled TurnStatus = "cancelled"
)
