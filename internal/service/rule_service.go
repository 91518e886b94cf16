package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loanguard/internal/domain"
	"loanguard/internal/logger"
	iface "loanguard/internal/repository/iface"
	"loanguard/internal/settings"

	"github.com/google/uuid"
)

// RuleScheduler registers a rule's recurring job
type RuleScheduler interface {
	ScheduleRecurring(ctx context.Context, ruleID string, interval time.Duration) (*domain.ScheduledJob, error)
}

// CreateRuleInput carries a new rule. Empty optional fields take the
// deployment defaults.
type CreateRuleInput struct {
	User            string
	TriggerPrice    string
	RepayAmount     string
	PayerAddress    string
	Protocol        string
	ChainID         int64
	CollateralAsset string
	DebtAsset       string
}

// RuleService manages protection rules
type RuleService interface {
	CreateRule(ctx context.Context, in CreateRuleInput) (*domain.ProtectionRule, error)
	GetRule(ctx context.Context, ruleID string) (*domain.ProtectionRule, error)
}

type ruleService struct {
	rules        iface.RuleRepository
	scheduler    RuleScheduler
	defaults     settings.RuleDefaults
	defaultPayer string
	payers       map[string]bool
	interval     time.Duration
	logger       logger.Logger
}

// NewRuleService creates a new rule service
func NewRuleService(
	rules iface.RuleRepository,
	scheduler RuleScheduler,
	defaults settings.RuleDefaults,
	defaultPayer string,
	allowedPayers []string,
	interval time.Duration,
	log logger.Logger,
) RuleService {
	payers := make(map[string]bool, len(allowedPayers))
	for _, payer := range allowedPayers {
		payers[strings.ToLower(strings.TrimSpace(payer))] = true
	}
	return &ruleService{
		rules:        rules,
		scheduler:    scheduler,
		defaults:     defaults,
		defaultPayer: defaultPayer,
		payers:       payers,
		interval:     interval,
		logger:       log.With(logger.String("component", "rule_service")),
	}
}

// CreateRule validates and stores the rule, then schedules its recurring
// job. If scheduling fails the stored rule is deleted again.
func (s *ruleService) CreateRule(ctx context.Context, in CreateRuleInput) (*domain.ProtectionRule, error) {
	if strings.TrimSpace(in.User) == "" || strings.TrimSpace(in.TriggerPrice) == "" || strings.TrimSpace(in.RepayAmount) == "" {
		return nil, domain.NewValidationError("", "Missing required fields")
	}

	payer := strings.TrimSpace(in.PayerAddress)
	if payer == "" {
		payer = s.defaultPayer
	}

	rule := domain.NewProtectionRule(
		uuid.NewString(),
		strings.TrimSpace(in.User),
		payer,
		strings.TrimSpace(in.TriggerPrice),
		strings.TrimSpace(in.RepayAmount),
	)
	rule.Protocol = firstNonEmpty(in.Protocol, s.defaults.Protocol)
	rule.CollateralAsset = firstNonEmpty(in.CollateralAsset, s.defaults.CollateralAsset)
	rule.DebtAsset = firstNonEmpty(in.DebtAsset, s.defaults.DebtAsset)
	rule.ChainID = in.ChainID
	if rule.ChainID == 0 {
		rule.ChainID = s.defaults.ChainID
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(rule.Protocol, s.defaults.Protocol) {
		return nil, domain.NewValidationError("protocol", fmt.Sprintf("%q is not supported", rule.Protocol))
	}
	if rule.ChainID != s.defaults.ChainID {
		return nil, domain.NewValidationError("chainId", fmt.Sprintf("%d is not supported", rule.ChainID))
	}
	if len(s.payers) > 0 && rule.PayerAddress != "" && !s.payers[strings.ToLower(rule.PayerAddress)] {
		return nil, domain.NewValidationError("payerAddress", "has no configured payer key")
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to store rule: %w", err)
	}

	if _, err := s.scheduler.ScheduleRecurring(ctx, rule.RuleID, s.interval); err != nil {
		s.logger.Error("failed to schedule rule, rolling back",
			logger.String("rule_id", rule.RuleID),
			logger.Error(err))
		if delErr := s.rules.Delete(ctx, rule.RuleID); delErr != nil {
			s.logger.Error("failed to roll back rule",
				logger.String("rule_id", rule.RuleID),
				logger.Error(delErr))
		}
		return nil, fmt.Errorf("failed to schedule rule: %w", err)
	}

	s.logger.Info("protection rule created",
		logger.String("rule_id", rule.RuleID),
		logger.String("user", rule.User),
		logger.String("trigger_price", rule.TriggerPrice),
		logger.String("repay_amount", rule.RepayAmount))
	return rule, nil
}

func (s *ruleService) GetRule(ctx context.Context, ruleID string) (*domain.ProtectionRule, error) {
	if strings.TrimSpace(ruleID) == "" {
		return nil, domain.NewValidationError("ruleId", "is required")
	}
	return s.rules.GetByID(ctx, ruleID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
