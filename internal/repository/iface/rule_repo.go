package repository

import (
	"context"

	"loanguard/internal/domain"
)

// RuleRepository stores protection rules
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.ProtectionRule) error
	// GetByID returns repository.ErrNotFound when the rule does not exist.
	GetByID(ctx context.Context, ruleID string) (*domain.ProtectionRule, error)
	// SetActive updates is_active alone and fails with ErrNotFound for a
	// missing rule.
	SetActive(ctx context.Context, ruleID string, active bool) error
	Delete(ctx context.Context, ruleID string) error
}
