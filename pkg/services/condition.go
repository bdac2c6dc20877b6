package services

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// ConditionEvaluator evaluates a trigger condition against the collected
// input results and reports whether the trigger fired.
type ConditionEvaluator interface {
	Evaluate(condition string, ctx *TriggerExecutionContext) (bool, error)
}

// ExprEvaluator evaluates conditions as expr-lang expressions. The
// expression sees `results` (the collected documents), `periodStart`,
// `periodEnd` and `monitor`/`trigger` names, and must yield a boolean.
type ExprEvaluator struct{}

// NewExprEvaluator creates the default condition evaluator.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{}
}

// Evaluate compiles and runs the condition. A condition that does not
// produce a boolean is an evaluation error.
func (e *ExprEvaluator) Evaluate(condition string, ctx *TriggerExecutionContext) (bool, error) {
	env := map[string]interface{}{
		"results":     ctx.Results,
		"periodStart": ctx.PeriodStart,
		"periodEnd":   ctx.PeriodEnd,
		"monitorName": ctx.Monitor.Name,
		"triggerName": ctx.Trigger.Name,
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("failed to compile condition: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition: %w", err)
	}
	triggered, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition produced %T, expected bool", out)
	}
	return triggered, nil
}
