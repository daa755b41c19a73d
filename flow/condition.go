package flow

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// ConditionEvaluator evaluates Condicao expressions against context
// variables using the expr language. Expressions address variables as
// `variables.<name>`, e.g. `variables.idade >= 18`.
type ConditionEvaluator struct{}

func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

func (e *ConditionEvaluator) Evaluate(expression string, variables map[string]any) (bool, error) {
	env := map[string]any{
		"variables": variables,
	}
	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	value, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean", expression)
	}
	return value, nil
}
