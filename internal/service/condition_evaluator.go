package service

import (
	"context"
	"fmt"

	"loanguard/internal/domain"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceOracle refreshes the on-chain price and returns it
type PriceOracle interface {
	Sync(ctx context.Context) (decimal.Decimal, error)
}

// HealthReader reads a borrower's health factor
type HealthReader interface {
	HealthFactor(ctx context.Context, user common.Address) (decimal.Decimal, error)
}

// ConditionEvaluator evaluates protection rule trigger conditions
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, rule *domain.ProtectionRule) (*domain.Evaluation, error)
}

type conditionEvaluator struct {
	oracle PriceOracle
	risk   HealthReader
	policy *TriggerPolicy
	logger logger.Logger
}

// NewConditionEvaluator creates a new condition evaluator
func NewConditionEvaluator(oracle PriceOracle, risk HealthReader, policy *TriggerPolicy, log logger.Logger) ConditionEvaluator {
	return &conditionEvaluator{
		oracle: oracle,
		risk:   risk,
		policy: policy,
		logger: log.With(logger.String("component", "condition_evaluator")),
	}
}

// Evaluate syncs the oracle price, reads the health factor and applies the
// trigger policy. Any failure aborts the evaluation.
func (e *conditionEvaluator) Evaluate(ctx context.Context, rule *domain.ProtectionRule) (*domain.Evaluation, error) {
	triggerPrice, err := rule.TriggerPriceDecimal()
	if err != nil {
		return nil, domain.NewValidationError("triggerPrice", fmt.Sprintf("invalid value %q", rule.TriggerPrice))
	}

	price, err := e.oracle.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sync oracle price: %w", err)
	}
	OraclePrice.Set(price.InexactFloat64())

	healthFactor, err := e.risk.HealthFactor(ctx, rule.UserAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to read health factor: %w", err)
	}

	triggered, err := e.policy.ShouldTrigger(healthFactor, price, triggerPrice)
	if err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).Info("rule evaluated",
		logger.String("health_factor", healthFactor.String()),
		logger.String("danger_threshold", e.policy.Threshold().String()),
		logger.String("price", price.String()),
		logger.String("trigger_price", triggerPrice.String()),
		logger.Bool("triggered", triggered))

	return &domain.Evaluation{
		HealthFactor: healthFactor,
		Price:        price,
		Triggered:    triggered,
	}, nil
}
