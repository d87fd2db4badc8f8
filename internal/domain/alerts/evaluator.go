// Package alerts evaluates low-stock alert rules. Organizations may
// configure a CEL expression over the snapshot counters; the default rule
// fires when on-hand falls to or below the product's minimum.
package alerts

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"restock/internal/core/apperror"
)

// DefaultRule is used when the organization has no custom expression.
const DefaultRule = "on_hand <= min_stock"

// Input carries the snapshot counters visible to rule expressions.
type Input struct {
	OnHand   int64
	OnOrder  int64
	MinStock int64
}

// Evaluator compiles and caches rule expressions. Safe for concurrent use.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator builds the CEL environment exposing on_hand, on_order and
// min_stock as integers.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("on_hand", cel.IntType),
		cel.Variable("on_order", cel.IntType),
		cel.Variable("min_stock", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create alert rule environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate returns true when the rule fires for the given counters.
// An empty rule falls back to DefaultRule.
func (e *Evaluator) Evaluate(rule string, in Input) (bool, error) {
	if rule == "" {
		rule = DefaultRule
	}

	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"on_hand":   in.OnHand,
		"on_order":  in.OnOrder,
		"min_stock": in.MinStock,
	})
	if err != nil {
		return false, apperror.NewValidation("alert rule evaluation failed").
			WithDetail("rule", rule).
			WithCause(err)
	}

	fired, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewValidation("alert rule must evaluate to a boolean").
			WithDetail("rule", rule)
	}
	return fired, nil
}

func (e *Evaluator) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[rule]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation("invalid alert rule expression").
			WithDetail("rule", rule).
			WithCause(issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid alert rule expression").
			WithDetail("rule", rule).
			WithCause(err)
	}

	e.mu.Lock()
	e.programs[rule] = prg
	e.mu.Unlock()
	return prg, nil
}
