package protection

import (
	"context"
	"time"

	protection "loanguard/internal/consumer/protection_queue/iface"
	"loanguard/internal/domain"
	"loanguard/internal/logger"
)

const (
	leaseReleaseTimeout = 5 * time.Second

	// leaseMargin is kept free at the end of a lease for post-repayment
	// bookkeeping and the release call.
	leaseMargin = 45 * time.Second
)

type protectionConsumer struct {
	logger logger.Logger
	runner protection.JobRunner
	leases protection.LeaseKeeper
}

// NewProtectionConsumer creates a new protection consumer
func NewProtectionConsumer(log logger.Logger, runner protection.JobRunner, leases protection.LeaseKeeper) protection.ProtectionConsumer {
	return &protectionConsumer{
		logger: log.With(logger.String("component", "protection_consumer")),
		runner: runner,
		leases: leases,
	}
}

// ProcessMessage implements ProtectionConsumer. A failed run is not
// redelivered: the next interval dispatch retries it.
func (c *protectionConsumer) ProcessMessage(ctx context.Context, message domain.DispatchMessage) bool {
	if message.RuleID == "" {
		c.logger.Warn("dropping dispatch without rule id")
		return true
	}

	log := c.logger.With(
		logger.String("rule_id", message.RuleID),
		logger.Int64("dispatched_at", message.DispatchedAt))

	claimed, err := c.leases.ClaimLease(ctx, message.RuleID, message.LeaseToken)
	if err != nil {
		log.Error("failed to claim lease, dropping dispatch", logger.Error(err))
		return true
	}
	if !claimed {
		log.Warn("dropping stale dispatch, lease expired or taken over")
		return true
	}
	log.Debug("processing protection dispatch")

	defer c.release(message)

	runCtx, cancel := context.WithTimeout(ctx, runBudget(c.leases.LeaseTTL()))
	defer cancel()

	result := c.runner.Run(runCtx, message.RuleID)
	if result != nil && result.Failed() {
		log.Warn("protection run failed, will retry on next interval",
			logger.String("status", string(result.Status)),
			logger.String("error_kind", string(result.ErrorKind())))
	}
	return true
}

// runBudget is how long a run may take once its lease was just claimed.
func runBudget(ttl time.Duration) time.Duration {
	if ttl > 2*leaseMargin {
		return ttl - leaseMargin
	}
	return ttl / 2
}

// release uses its own context so an expired processing deadline still frees
// the lease.
func (c *protectionConsumer) release(message domain.DispatchMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
	defer cancel()

	if err := c.leases.ReleaseLease(ctx, message.RuleID, message.LeaseToken); err != nil {
		c.logger.Warn("failed to release lease, it will expire",
			logger.String("rule_id", message.RuleID),
			logger.Error(err))
	}
}
