package service

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

const triggerExpression = `below(health_factor, danger_threshold) && below(price, trigger_price)`

type triggerEnv struct {
	HealthFactor    decimal.Decimal `expr:"health_factor"`
	DangerThreshold decimal.Decimal `expr:"danger_threshold"`
	Price           decimal.Decimal `expr:"price"`
	TriggerPrice    decimal.Decimal `expr:"trigger_price"`
}

// below is a strict decimal comparison exposed to the expression.
var below = expr.Function(
	"below",
	func(params ...any) (any, error) {
		a, ok1 := params[0].(decimal.Decimal)
		b, ok2 := params[1].(decimal.Decimal)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("below expects decimals, got %T and %T", params[0], params[1])
		}
		return a.LessThan(b), nil
	},
	new(func(decimal.Decimal, decimal.Decimal) bool),
)

// TriggerPolicy decides whether a rule must be executed: both the health
// factor and the oracle price have to be strictly below their thresholds.
type TriggerPolicy struct {
	threshold decimal.Decimal
	program   *vm.Program
}

// NewTriggerPolicy compiles the trigger expression once.
func NewTriggerPolicy(dangerThreshold decimal.Decimal) (*TriggerPolicy, error) {
	program, err := expr.Compile(triggerExpression, expr.Env(triggerEnv{}), below, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile trigger policy: %w", err)
	}
	return &TriggerPolicy{threshold: dangerThreshold, program: program}, nil
}

// Threshold returns the health factor danger threshold.
func (p *TriggerPolicy) Threshold() decimal.Decimal {
	return p.threshold
}

// ShouldTrigger evaluates the policy for one observation.
func (p *TriggerPolicy) ShouldTrigger(healthFactor, price, triggerPrice decimal.Decimal) (bool, error) {
	result, err := expr.Run(p.program, triggerEnv{
		HealthFactor:    healthFactor,
		DangerThreshold: p.threshold,
		Price:           price,
		TriggerPrice:    triggerPrice,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate trigger policy: %w", err)
	}
	triggered, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("trigger policy did not return boolean: %T", result)
	}
	return triggered, nil
}
