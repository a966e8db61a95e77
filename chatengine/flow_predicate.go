package chatengine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Predicate 决定 flow 步骤是否执行
type Predicate func(tc *TurnContext) bool

// Not 取反
func Not(p Predicate) Predicate {
	return func(tc *TurnContext) bool { return !p(tc) }
}

// Present 字段存在时为真
func Present(field string) Predicate {
	return func(tc *TurnContext) bool { return tc.Has(field) }
}

// ParsePredicate 解析字段存在性表达式。
//
// 表达式由 expr 编译，只允许字段名、'!'（not）、'&&'（and）、'||'（or）
// 与括号，&& 优先于 ||。例如 "history && !retrieved_context"。
func ParsePredicate(input string) (Predicate, error) {
	p, _, err := parsePredicate(input)
	return p, err
}

// parsePredicate 同时返回表达式引用的字段
func parsePredicate(input string) (Predicate, []string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil, fmt.Errorf("empty predicate")
	}
	tree, err := parser.Parse(input)
	if err != nil {
		return nil, nil, err
	}

	check := &predicateChecker{}
	ast.Walk(&tree.Node, check)
	if check.err != nil {
		return nil, nil, check.err
	}

	env := make(map[string]any, len(check.fields))
	for _, f := range check.fields {
		env[f] = false
	}
	program, err := expr.Compile(input, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, nil, err
	}

	fields := check.fields
	pred := func(tc *TurnContext) bool {
		vars := make(map[string]any, len(fields))
		for _, f := range fields {
			vars[f] = tc.Has(f)
		}
		out, err := expr.Run(program, vars)
		if err != nil {
			return false
		}
		b, _ := out.(bool)
		return b
	}
	return pred, fields, nil
}

// predicateChecker 限制 AST 只含字段与布尔运算，并收集字段名
type predicateChecker struct {
	fields []string
	err    error
}

func (c *predicateChecker) Visit(node *ast.Node) {
	if c.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.fields = append(c.fields, n.Value)
	case *ast.UnaryNode:
		if n.Operator != "!" && n.Operator != "not" {
			c.err = fmt.Errorf("unsupported operator %q", n.Operator)
		}
	case *ast.BinaryNode:
		switch n.Operator {
		case "&&", "||", "and", "or":
		default:
			c.err = fmt.Errorf("unsupported operator %q", n.Operator)
		}
	default:
		c.err = fmt.Errorf("unsupported %T in predicate", n)
	}
}
