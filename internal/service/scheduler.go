package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	cache "loanguard/internal/cache/iface"
	"loanguard/internal/domain"
	"loanguard/internal/logger"
	"loanguard/internal/repository"
	iface "loanguard/internal/repository/iface"
	queue "loanguard/internal/queue/iface"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	dueSetKey      = "loanguard:jobs:due"
	leaseKeyPrefix = "loanguard:lease:"

	// luaReleaseLease deletes the lease only if it is still held by the caller
	luaReleaseLease = `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		end
		return 0
	`

	// luaClaimLease extends the lease to a full TTL only if token still owns it
	luaClaimLease = `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return 0
	`
)

// IScheduler is the scheduler surface used by the binaries and the protection
// consumer.
type IScheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ScheduleRecurring(ctx context.Context, ruleID string, interval time.Duration) (*domain.ScheduledJob, error)
	RemoveJob(ctx context.Context, ruleID string) error
	ClaimLease(ctx context.Context, ruleID, token string) (bool, error)
	ReleaseLease(ctx context.Context, ruleID, token string) error
}

var _ IScheduler = (*Scheduler)(nil)

// SchedulerConfig tunes the dispatch loop
type SchedulerConfig struct {
	PollSpec  string
	LeaseTTL  time.Duration
	BatchSize int64
	NodeID    string
}

// Scheduler keeps recurring protection jobs in DynamoDB and a Redis sorted
// set scored by next run time. Each tick it leases due jobs, moves them to
// their next run and hands them to the queue. A rule is never dispatched while
// its lease is held.
type Scheduler struct {
	cache   cache.Cache
	jobRepo iface.JobRepository
	sender  queue.Sender
	config  SchedulerConfig
	logger  logger.Logger
	cron    *cron.Cron
	now     func() time.Time
}

// NewScheduler creates a new scheduler service
func NewScheduler(
	cache cache.Cache,
	jobRepo iface.JobRepository,
	sender queue.Sender,
	config SchedulerConfig,
	log logger.Logger,
) *Scheduler {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	log = log.With(logger.String("component", "scheduler"), logger.String("node_id", config.NodeID))
	cl := cronLogger{log: log}
	return &Scheduler{
		cache:   cache,
		jobRepo: jobRepo,
		sender:  sender,
		config:  config,
		logger:  log,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		now:     time.Now,
	}
}

// Start restores the due set from DynamoDB and begins the dispatch cron
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.syncFromStore(ctx); err != nil {
		return err
	}

	_, err := s.cron.AddFunc(s.config.PollSpec, func() {
		s.DispatchDue(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to add dispatch cron: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", logger.String("poll_spec", s.config.PollSpec))
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// ScheduleRecurring registers ruleID to run every interval, starting now.
// Scheduling an already scheduled rule resets it.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, ruleID string, interval time.Duration) (*domain.ScheduledJob, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval %s is below one second", interval)
	}

	job := domain.NewRecurringJob(ruleID, interval, s.now())
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.cache.ZAdd(ctx, dueSetKey, float64(job.NextRunAt), ruleID); err != nil {
		return nil, fmt.Errorf("failed to add job to due set: %w", err)
	}

	s.logger.Info("recurring job scheduled",
		logger.String("job_id", ruleID),
		logger.Duration("interval", interval))
	return job, nil
}

// RemoveJob unschedules ruleID. Removing an unknown job is not an error.
func (s *Scheduler) RemoveJob(ctx context.Context, ruleID string) error {
	if err := s.cache.ZRem(ctx, dueSetKey, ruleID); err != nil {
		return fmt.Errorf("failed to remove job from due set: %w", err)
	}
	if err := s.jobRepo.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	s.logger.Info("recurring job removed", logger.String("job_id", ruleID))
	return nil
}

// ClaimLease confirms token still owns the rule's lease and pushes its expiry
// a full LeaseTTL ahead. A false result means the lease expired or belongs to
// a newer dispatch, and the caller must not run the job.
func (s *Scheduler) ClaimLease(ctx context.Context, ruleID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	result, err := s.cache.Eval(ctx, luaClaimLease, []string{leaseKey(ruleID)}, token, s.config.LeaseTTL.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("failed to claim lease: %w", err)
	}
	claimed, _ := result.(int64)
	return claimed == 1, nil
}

// LeaseTTL is how long a claimed lease stays valid.
func (s *Scheduler) LeaseTTL() time.Duration {
	return s.config.LeaseTTL
}

// ReleaseLease frees the per-rule lease if token still owns it
func (s *Scheduler) ReleaseLease(ctx context.Context, ruleID, token string) error {
	result, err := s.cache.Eval(ctx, luaReleaseLease, []string{leaseKey(ruleID)}, token)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if released, ok := result.(int64); ok && released == 0 {
		s.logger.Warn("lease already expired or taken over",
			logger.String("job_id", ruleID))
	}
	return nil
}

// DispatchDue sends every job whose next run time has passed
func (s *Scheduler) DispatchDue(ctx context.Context) {
	now := s.now()
	ids, err := s.cache.ZRangeByScore(ctx, dueSetKey, "-inf", strconv.FormatInt(now.UnixMilli(), 10), s.config.BatchSize)
	if err != nil {
		s.logger.Error("failed to read due jobs", logger.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	s.logger.Debug("dispatching due jobs", logger.Int("count", len(ids)))
	for _, ruleID := range ids {
		s.dispatch(ctx, ruleID, now)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, ruleID string, now time.Time) {
	log := s.logger.With(logger.String("job_id", ruleID))

	token := uuid.NewString()
	acquired, err := s.cache.SetNX(ctx, leaseKey(ruleID), token, s.config.LeaseTTL)
	if err != nil {
		log.Error("failed to acquire lease", logger.Error(err))
		SchedulerDispatchesTotal.WithLabelValues("error").Inc()
		return
	}
	if !acquired {
		log.Debug("previous execution still running, skipping")
		SchedulerDispatchesTotal.WithLabelValues("busy").Inc()
		return
	}

	release := func() {
		if err := s.ReleaseLease(ctx, ruleID, token); err != nil {
			log.Warn("failed to release lease", logger.Error(err))
		}
	}

	job, err := s.jobRepo.GetByID(ctx, ruleID)
	if err != nil {
		release()
		if repository.IsNotFoundError(err) {
			log.Warn("due set entry has no job record, dropping")
			_ = s.cache.ZRem(ctx, dueSetKey, ruleID)
			SchedulerDispatchesTotal.WithLabelValues("orphan").Inc()
			return
		}
		log.Error("failed to load job", logger.Error(err))
		SchedulerDispatchesTotal.WithLabelValues("error").Inc()
		return
	}

	// Another node dispatched this run already; resync the score.
	if job.NextRunAt > now.UnixMilli() {
		release()
		_ = s.cache.ZAdd(ctx, dueSetKey, float64(job.NextRunAt), ruleID)
		SchedulerDispatchesTotal.WithLabelValues("stale").Inc()
		return
	}

	next := job.NextRunAfter(now).UnixMilli()
	if err := s.jobRepo.RecordDispatch(ctx, ruleID, job.NextRunAt, now.UnixMilli(), next); err != nil {
		release()
		if !errors.Is(err, repository.ErrOptimisticLockFailed) {
			log.Error("failed to record dispatch", logger.Error(err))
		}
		SchedulerDispatchesTotal.WithLabelValues("stale").Inc()
		return
	}

	if err := s.cache.ZAdd(ctx, dueSetKey, float64(next), ruleID); err != nil {
		log.Error("failed to reschedule job", logger.Error(err))
	}

	msg := domain.DispatchMessage{RuleID: ruleID, LeaseToken: token, DispatchedAt: now.UnixMilli()}
	if err := s.sender.Send(ctx, msg); err != nil {
		log.Error("failed to send job to queue", logger.Error(err))
		release()
		// Make it due again so the next tick retries
		_ = s.cache.ZAdd(ctx, dueSetKey, float64(now.UnixMilli()), ruleID)
		SchedulerDispatchesTotal.WithLabelValues("error").Inc()
		return
	}

	SchedulerDispatchesTotal.WithLabelValues("sent").Inc()
	log.Debug("job dispatched", logger.Int64("next_run_at", next))
}

// syncFromStore rebuilds the due set from the job table
func (s *Scheduler) syncFromStore(ctx context.Context) error {
	jobs, err := s.jobRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.cache.ZAdd(ctx, dueSetKey, float64(job.NextRunAt), job.JobID); err != nil {
			return fmt.Errorf("failed to restore job %s: %w", job.JobID, err)
		}
	}

	s.logger.Info("due set restored from store", logger.Int("jobs", len(jobs)))
	return nil
}

func leaseKey(ruleID string) string {
	return leaseKeyPrefix + ruleID
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
