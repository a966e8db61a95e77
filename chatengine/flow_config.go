package chatengine

import (
	"sort"
	"sync"

	"github.com/BaSui01/chatflow/config"
	"github.com/BaSui01/chatflow/rag"
)

// StepRegistry 按名称登记自定义步骤处理器，供 YAML flow 引用
type StepRegistry struct {
	mu       sync.RWMutex
	handlers map[string]StepFunc
}

// NewStepRegistry 创建注册表
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{handlers: make(map[string]StepFunc)}
}

// Register 登记处理器，同名覆盖
func (r *StepRegistry) Register(name string, fn StepFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Lookup 查找处理器
func (r *StepRegistry) Lookup(name string) (StepFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names 返回已登记的处理器名（排序）
func (r *StepRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlowDeps 构造 flow 时注入的协作者
type FlowDeps struct {
	CondenseLLM Completer
	Retriever   rag.Retriever
	Registry    *StepRegistry
}

// BuildFlow 把 YAML 描述符转换为步骤列表并做静态校验
func BuildFlow(cfgs []config.FlowStepConfig, deps FlowDeps) ([]FlowStep, error) {
	steps := make([]FlowStep, 0, len(cfgs))
	for i, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, newConfigurationError("flow step %d: %v", i, err)
		}

		var opts []StepOption
		if c.Name != "" {
			opts = append(opts, Named(c.Name))
		}
		if c.When != "" {
			opts = append(opts, WhenExpr(c.When))
		}

		switch Capability(c.Capability) {
		case CapabilityCondense:
			steps = append(steps, CondenseStep(deps.CondenseLLM, opts...))

		case CapabilityRetrieve:
			placement, _ := ParsePlacement(c.Inject)
			opts = append(opts, Inject(placement), StepTopK(c.TopK))
			if c.Input != "" {
				opts = append(opts, QueryFrom(c.Input))
			}
			steps = append(steps, RetrieveStep(deps.Retriever, opts...))

		case CapabilitySynthesize:
			steps = append(steps, SynthesizeStep(opts...))

		case CapabilityCustom:
			if deps.Registry == nil {
				return nil, newConfigurationError("flow step %d: no step registry for handler %q", i, c.Handler)
			}
			fn, ok := deps.Registry.Lookup(c.Handler)
			if !ok {
				return nil, newConfigurationError("flow step %d: unknown handler %q", i, c.Handler)
			}
			if c.Inject != "" {
				placement, _ := ParsePlacement(c.Inject)
				opts = append(opts, Inject(placement))
			}
			name := c.Name
			if name == "" {
				name = c.Handler
			}
			steps = append(steps, CustomStep(name, fn, c.Inputs, c.Outputs, opts...))
		}
	}

	if err := ValidateFlow(steps); err != nil {
		return nil, err
	}
	return steps, nil
}
