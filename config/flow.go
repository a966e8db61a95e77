package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FlowStepConfig 是 FlowChatEngine 单个步骤的声明式描述。
//
// 示例:
//
//	flow:
//	  - capability: condense
//	    when: history
//	  - capability: retrieve
//	    input: condensed_query
//	    inject: system
//	    top_k: 3
//	  - capability: custom
//	    name: tag_language
//	    handler: detect_language
//	    outputs: [language]
//	  - capability: synthesize
type FlowStepConfig struct {
	// 步骤名，默认为 capability
	Name string `yaml:"name" json:"name,omitempty"`
	// 能力标签: condense, retrieve, synthesize, custom
	Capability string `yaml:"capability" json:"capability"`
	// 谓词表达式，例如 "history && !retrieved_context"
	When string `yaml:"when" json:"when,omitempty"`
	// retrieve 的查询字段: condensed_query（默认）或 message
	Input string `yaml:"input" json:"input,omitempty"`
	// retrieved_context 的注入方式: none, system（默认）, inline。
	// 用于 retrieve 以及写出 retrieved_context 的 custom 步骤
	Inject string `yaml:"inject" json:"inject,omitempty"`
	// retrieve 的 topK，0 表示使用引擎默认值
	TopK int `yaml:"top_k" json:"top_k,omitempty"`
	// custom 步骤在注册表中的处理器名
	Handler string `yaml:"handler" json:"handler,omitempty"`
	// custom 步骤声明的输入
	Inputs []string `yaml:"inputs" json:"inputs,omitempty"`
	// custom 步骤声明的输出
	Outputs []string `yaml:"outputs" json:"outputs,omitempty"`
}

// Validate 检查描述符本身是否自洽。跨步骤的数据依赖由引擎构造时校验。
func (s FlowStepConfig) Validate() error {
	switch s.Capability {
	case "condense", "synthesize":
	case "retrieve":
		switch s.Input {
		case "", "condensed_query", "message":
		default:
			return fmt.Errorf("retrieve input must be condensed_query or message, got %q", s.Input)
		}
		switch s.Inject {
		case "", "none", "system", "inline":
		default:
			return fmt.Errorf("unknown inject mode %q", s.Inject)
		}
		if s.TopK < 0 {
			return fmt.Errorf("top_k must not be negative")
		}
	case "custom":
		if s.Handler == "" {
			return fmt.Errorf("custom step requires a handler")
		}
		switch s.Inject {
		case "", "none", "system", "inline":
		default:
			return fmt.Errorf("unknown inject mode %q", s.Inject)
		}
	case "":
		return fmt.Errorf("capability is required")
	default:
		return fmt.Errorf("unknown capability %q", s.Capability)
	}
	return nil
}

// flowFile 独立 flow 文件的结构
type flowFile struct {
	Flow []FlowStepConfig `yaml:"flow"`
}

// LoadFlowFile 从 YAML 文件读取步骤列表。
// 文件可以是顶层 flow 键，也可以直接是步骤数组。
func LoadFlowFile(path string) ([]FlowStepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return ParseFlow(data)
}

// ParseFlow 解析 YAML 步骤列表并逐项校验
func ParseFlow(data []byte) ([]FlowStepConfig, error) {
	var steps []FlowStepConfig

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&steps); err != nil {
			return nil, fmt.Errorf("failed to decode flow: %w", err)
		}
	} else {
		var f flowFile
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode flow: %w", err)
		}
		steps = f.Flow
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("flow has no steps")
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return steps, nil
}
