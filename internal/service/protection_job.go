package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"loanguard/internal/domain"
	"loanguard/internal/lending"
	"loanguard/internal/logger"
	"loanguard/internal/repository"
	iface "loanguard/internal/repository/iface"
)

const (
	defaultDeactivateAttempts = 3
	defaultDeactivateDelay    = 500 * time.Millisecond

	// settleTimeout bounds deactivation and removal after a repayment. They
	// run detached from the run deadline.
	settleTimeout = 30 * time.Second
)

// RepaymentExecutor performs the on-chain repayment for a triggered rule
type RepaymentExecutor interface {
	Execute(ctx context.Context, req lending.RepaymentRequest) (*domain.RepaymentOutcome, error)
}

// JobRemover unschedules a rule's recurring job
type JobRemover interface {
	RemoveJob(ctx context.Context, ruleID string) error
}

// ProtectionJob is the per-rule unit of work run on every interval. Run never
// returns an error: every outcome, including failures, is an ExecutionResult.
type ProtectionJob struct {
	rules     iface.RuleRepository
	evaluator ConditionEvaluator
	executor  RepaymentExecutor
	remover   JobRemover
	logger    logger.Logger

	deactivateAttempts int
	deactivateDelay    time.Duration
}

func NewProtectionJob(
	rules iface.RuleRepository,
	evaluator ConditionEvaluator,
	executor RepaymentExecutor,
	remover JobRemover,
	log logger.Logger,
) *ProtectionJob {
	return &ProtectionJob{
		rules:              rules,
		evaluator:          evaluator,
		executor:           executor,
		remover:            remover,
		logger:             log.With(logger.String("component", "protection_job")),
		deactivateAttempts: defaultDeactivateAttempts,
		deactivateDelay:    defaultDeactivateDelay,
	}
}

// Run executes one evaluation of ruleID.
func (j *ProtectionJob) Run(ctx context.Context, ruleID string) (result *domain.ExecutionResult) {
	start := time.Now()
	ctx = logger.ContextWithRuleID(ctx, ruleID)
	log := j.logger.WithContext(ctx)
	result = &domain.ExecutionResult{RuleID: ruleID, Stage: domain.StageFetch}

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.ExecutionStatusFailed
			result.Err = fmt.Errorf("protection job panicked: %v", r)
			log.Error("protection job panicked",
				logger.String("stage", string(result.Stage)),
				logger.Any("panic", r))
		}
		result.Duration = time.Since(start)
		j.record(log, result)
	}()

	rule, err := j.rules.GetByID(ctx, ruleID)
	if err != nil && !repository.IsNotFoundError(err) {
		return j.fail(result, err)
	}
	if err != nil || !rule.IsActive {
		log.Info("rule not found or inactive, removing job")
		result.Status = domain.ExecutionStatusInactive
		result.Stage = domain.StageRemove
		if err := j.remover.RemoveJob(ctx, ruleID); err != nil {
			result.Err = fmt.Errorf("failed to remove job: %w", err)
		}
		return result
	}

	result.Stage = domain.StageEvaluate
	evaluation, err := j.evaluator.Evaluate(ctx, rule)
	if err != nil {
		return j.fail(result, err)
	}
	result.Evaluation = evaluation
	if !evaluation.Triggered {
		result.Status = domain.ExecutionStatusSkipped
		return result
	}

	result.Stage = domain.StageRepay
	log.Warn("protection triggered, repaying",
		logger.String("repay_amount", rule.RepayAmount),
		logger.String("user", rule.User))

	outcome, err := j.executor.Execute(ctx, lending.RepaymentRequest{
		DebtOwner: rule.UserAddress(),
		Payer:     rule.Payer(),
		Amount:    rule.RepayAmount,
	})
	if err != nil {
		return j.fail(result, err)
	}
	result.Outcome = outcome
	result.Status = domain.ExecutionStatusRepaid
	RepaymentsTotal.WithLabelValues(strconv.FormatBool(outcome.ApprovalPerformed)).Inc()

	// The repayment is on-chain now. Even if deactivation fails the job is
	// removed so it cannot repay twice.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	result.Stage = domain.StageDeactivate
	if err := j.deactivate(settleCtx, ruleID); err != nil {
		result.Err = err
		log.Error("failed to deactivate rule after repayment", logger.Error(err))
	}

	result.Stage = domain.StageRemove
	if err := j.remover.RemoveJob(settleCtx, ruleID); err != nil {
		log.Error("failed to remove job after repayment", logger.Error(err))
		if result.Err == nil {
			result.Err = fmt.Errorf("failed to remove job: %w", err)
		}
	}
	return result
}

func (j *ProtectionJob) deactivate(ctx context.Context, ruleID string) error {
	var err error
	for attempt := 1; attempt <= j.deactivateAttempts; attempt++ {
		if err = j.rules.SetActive(ctx, ruleID, false); err == nil {
			return nil
		}
		j.logger.Warn("deactivate attempt failed",
			logger.String("rule_id", ruleID),
			logger.Int("attempt", attempt),
			logger.Error(err))

		if attempt == j.deactivateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to deactivate rule: %w", ctx.Err())
		case <-time.After(j.deactivateDelay):
		}
	}
	return fmt.Errorf("failed to deactivate rule after %d attempts: %w", j.deactivateAttempts, err)
}

func (j *ProtectionJob) fail(result *domain.ExecutionResult, err error) *domain.ExecutionResult {
	result.Status = domain.ExecutionStatusFailed
	result.Err = err
	return result
}

func (j *ProtectionJob) record(log logger.Logger, result *domain.ExecutionResult) {
	kind := string(result.ErrorKind())
	JobExecutionsTotal.WithLabelValues(string(result.Status), string(result.Stage), kind).Inc()
	JobExecutionDuration.WithLabelValues(string(result.Status)).Observe(result.Duration.Seconds())

	fields := []logger.Field{
		logger.String("status", string(result.Status)),
		logger.String("stage", string(result.Stage)),
		logger.Duration("duration", result.Duration),
	}
	if result.Outcome != nil {
		fields = append(fields,
			logger.Bool("approval_performed", result.Outcome.ApprovalPerformed),
			logger.String("repay_hash", result.Outcome.RepayHash))
	}
	if result.Err != nil {
		fields = append(fields, logger.String("error_kind", kind), logger.Error(result.Err))
		log.Error("protection job finished with error", fields...)
		return
	}
	log.Info("protection job finished", fields...)
}
