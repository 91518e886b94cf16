package protection_queue

import (
	"context"
	"time"

	"loanguard/internal/domain"
)

// ProtectionConsumer processes due protection jobs delivered by the scheduler
type ProtectionConsumer interface {
	// ProcessMessage runs the job for one dispatch. Returns true if the
	// message should be deleted.
	ProcessMessage(ctx context.Context, message domain.DispatchMessage) bool
}

// JobRunner executes one protection run for a rule
type JobRunner interface {
	Run(ctx context.Context, ruleID string) *domain.ExecutionResult
}

// LeaseKeeper guards the per-rule lease taken at dispatch. A message may only
// run while its token still owns the lease.
type LeaseKeeper interface {
	ClaimLease(ctx context.Context, ruleID, token string) (bool, error)
	ReleaseLease(ctx context.Context, ruleID, token string) error
	LeaseTTL() time.Duration
}
