package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	cache "loanguard/internal/cache/iface"
	"loanguard/internal/domain"
	"loanguard/internal/lending"
	"loanguard/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type fakeRuleRepo struct {
	mu        sync.Mutex
	rules     map[string]*domain.ProtectionRule
	getErr    error
	setErrs   []error
	setCalls  int
	deleted   []string
	createErr error
}

func newFakeRuleRepo(rules ...*domain.ProtectionRule) *fakeRuleRepo {
	r := &fakeRuleRepo{rules: map[string]*domain.ProtectionRule{}}
	for _, rule := range rules {
		r.rules[rule.RuleID] = rule
	}
	return r
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *domain.ProtectionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.rules[rule.RuleID] = rule
	return nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, ruleID string) (*domain.ProtectionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rule, ok := r.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, repository.ErrNotFound)
	}
	copied := *rule
	return &copied, nil
}

func (r *fakeRuleRepo) SetActive(ctx context.Context, ruleID string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.setCalls
	r.setCalls++
	if i < len(r.setErrs) && r.setErrs[i] != nil {
		return r.setErrs[i]
	}
	rule, ok := r.rules[ruleID]
	if !ok {
		return repository.ErrNotFound
	}
	rule.IsActive = active
	return nil
}

func (r *fakeRuleRepo) Delete(ctx context.Context, ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, ruleID)
	r.deleted = append(r.deleted, ruleID)
	return nil
}

type fakeJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*domain.ScheduledJob
	createErr error
	getErr    error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.ScheduledJob{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *job
	r.jobs[job.JobID] = &copied
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) ListActive(ctx context.Context) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.ScheduledJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeJobRepo) RecordDispatch(ctx context.Context, jobID string, expectedNextRunAt, dispatchedAt, nextRunAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.NextRunAt != expectedNextRunAt {
		return repository.ErrOptimisticLockFailed
	}
	job.NextRunAt = nextRunAt
	job.LastDispatchedAt = dispatchedAt
	job.DispatchCount++
	return nil
}

func (r *fakeJobRepo) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
	return nil
}

// memoryCache implements the cache operations the scheduler relies on.
type memoryCache struct {
	mu       sync.Mutex
	values   map[string]string
	expires  map[string]time.Time
	zsets    map[string]map[string]float64
	failZAdd bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		values:  map[string]string{},
		expires: map[string]time.Time{},
		zsets:   map[string]map[string]float64{},
	}
}

func (c *memoryCache) live(key string) (string, bool) {
	v, ok := c.values[key]
	if !ok {
		return "", false
	}
	if exp, has := c.expires[key]; has && time.Now().After(exp) {
		delete(c.values, key)
		delete(c.expires, key)
		return "", false
	}
	return v, true
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fmt.Sprint(value)
	if ttl > 0 {
		c.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.live(key)
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.zsets, key)
	return nil
}

func (c *memoryCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.values[key] = fmt.Sprint(value)
	if ttl > 0 {
		c.expires[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (c *memoryCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failZAdd {
		return errors.New("zadd failed")
	}
	if c.zsets[key] == nil {
		c.zsets[key] = map[string]float64{}
	}
	c.zsets[key][member] = score
	return nil
}

func (c *memoryCache) ZRangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	upper, err := strconv.ParseFloat(max, 64)
	if err != nil {
		return nil, err
	}
	type entry struct {
		member string
		score  float64
	}
	var entries []entry
	for m, s := range c.zsets[key] {
		if s <= upper {
			entries = append(entries, entry{m, s})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score == entries[j].score {
			return entries[i].member < entries[j].member
		}
		return entries[i].score < entries[j].score
	})
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		out = append(out, e.member)
	}
	return out, nil
}

func (c *memoryCache) ZRem(ctx context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range members {
		delete(c.zsets[key], m)
	}
	return nil
}

func (c *memoryCache) ZScore(ctx context.Context, key string, member string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.zsets[key][member]
	if !ok {
		return 0, cache.ErrCacheMiss
	}
	return s, nil
}

// Eval understands only the lease scripts.
func (c *memoryCache) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.live(keys[0])
	owned := ok && v == fmt.Sprint(args[0])
	switch script {
	case luaReleaseLease:
		if owned {
			delete(c.values, keys[0])
			delete(c.expires, keys[0])
			return int64(1), nil
		}
		return int64(0), nil
	case luaClaimLease:
		if owned {
			c.expires[keys[0]] = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, errors.New("unsupported script")
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) score(member string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.zsets[dueSetKey][member]
	return s, ok
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []domain.DispatchMessage
	err  error
}

func (s *fakeSender) Send(ctx context.Context, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, message.(domain.DispatchMessage))
	return nil
}

func (s *fakeSender) sent() []domain.DispatchMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DispatchMessage(nil), s.msgs...)
}

type fakeOracle struct {
	price decimal.Decimal
	err   error
	calls int
	order *[]string
}

func (o *fakeOracle) Sync(ctx context.Context) (decimal.Decimal, error) {
	o.calls++
	if o.order != nil {
		*o.order = append(*o.order, "oracle")
	}
	return o.price, o.err
}

type fakeRisk struct {
	hf    decimal.Decimal
	err   error
	calls int
	order *[]string
	user  common.Address
}

func (r *fakeRisk) HealthFactor(ctx context.Context, user common.Address) (decimal.Decimal, error) {
	r.calls++
	r.user = user
	if r.order != nil {
		*r.order = append(*r.order, "risk")
	}
	return r.hf, r.err
}

type fakeExecutor struct {
	outcome *domain.RepaymentOutcome
	err     error
	reqs    []lending.RepaymentRequest
	panics  bool
	// after runs once the repayment went through
	after func()
}

func (e *fakeExecutor) Execute(ctx context.Context, req lending.RepaymentRequest) (*domain.RepaymentOutcome, error) {
	if e.panics {
		panic("boom")
	}
	e.reqs = append(e.reqs, req)
	if e.err != nil {
		return nil, e.err
	}
	if e.after != nil {
		e.after()
	}
	if e.outcome != nil {
		return e.outcome, nil
	}
	return &domain.RepaymentOutcome{ApprovalPerformed: true, ApprovalHash: "0xa", RepayHash: "0xb"}, nil
}

type fakeRemover struct {
	removed []string
	err     error
}

func (r *fakeRemover) RemoveJob(ctx context.Context, ruleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.removed = append(r.removed, ruleID)
	return r.err
}

type fakeScheduler struct {
	scheduled map[string]time.Duration
	err       error
}

func (s *fakeScheduler) ScheduleRecurring(ctx context.Context, ruleID string, interval time.Duration) (*domain.ScheduledJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.scheduled == nil {
		s.scheduled = map[string]time.Duration{}
	}
	s.scheduled[ruleID] = interval
	return domain.NewRecurringJob(ruleID, interval, time.Now()), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
