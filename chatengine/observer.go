package chatengine

import "time"

// TurnObserver 接收轮次与阶段的观测数据。
// 实现必须并发安全，且不得阻塞。
type TurnObserver interface {
	// ObserveTurn 记录一个结束的轮次
	ObserveTurn(engine string, status TurnStatus, streaming bool, duration time.Duration)

	// ObservePhase 记录一个阶段（condensing / retrieving / synthesizing）的耗时
	ObservePhase(engine string, phase TurnState, duration time.Duration, err error)

	// ObserveBusy 记录一次因引擎忙被拒绝的调用
	ObserveBusy(engine string)

	// ObserveRetrieval 记录一次检索得到的节点数
	ObserveRetrieval(engine string, nodes int)
}

type nopObserver struct{}

func (nopObserver) ObserveTurn(string, TurnStatus, bool, time.Duration)  {}
func (nopObserver) ObservePhase(string, TurnState, time.Duration, error) {}
func (nopObserver) ObserveBusy(string)                                   {}
func (nopObserver) ObserveRetrieval(string, int)                         {}

// MultiObserver 把观测数据依次转发给多个观察者，nil 项被忽略
func MultiObserver(observers ...TurnObserver) TurnObserver {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return nopObserver{}
	case 1:
		return out[0]
	}
	return out
}

type multiObserver []TurnObserver

func (m multiObserver) ObserveTurn(engine string, status TurnStatus, streaming bool, d time.Duration) {
	for _, o := range m {
		o.ObserveTurn(engine, status, streaming, d)
	}
}

func (m multiObserver) ObservePhase(engine string, phase TurnState, d time.Duration, err error) {
	for _, o := range m {
		o.ObservePhase(engine, phase, d, err)
	}
}

func (m multiObserver) ObserveBusy(engine string) {
	for _, o := range m {
		o.ObserveBusy(engine)
	}
}

func (m multiObserver) ObserveRetrieval(engine string, nodes int) {
	for _, o := range m {
		o.ObserveRetrieval(engine, nodes)
	}
}
