package domain

import (
	"time"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusActive JobStatus = "ACTIVE"
)

// ProtectionJobName is the only job type the scheduler runs.
const ProtectionJobName = "loan-protection"

// ScheduledJob is the persistent record of a recurring protection job. The
// job id is the rule id, so a rule has at most one job.
type ScheduledJob struct {
	JobID            string    `json:"job_id" dynamodbav:"job_id"`
	JobName          string    `json:"job_name" dynamodbav:"job_name"`
	IntervalSeconds  int64     `json:"interval_seconds" dynamodbav:"interval_seconds"`
	Status           JobStatus `json:"status" dynamodbav:"status"`
	NextRunAt        int64     `json:"next_run_at" dynamodbav:"next_run_at"`
	LastDispatchedAt int64     `json:"last_dispatched_at,omitempty" dynamodbav:"last_dispatched_at,omitempty"`
	DispatchCount    int64     `json:"dispatch_count" dynamodbav:"dispatch_count"`
	CreatedAt        int64     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        int64     `json:"updated_at" dynamodbav:"updated_at"`
}

// NewRecurringJob creates a job for ruleID whose first run is due immediately.
func NewRecurringJob(ruleID string, interval time.Duration, now time.Time) *ScheduledJob {
	ms := now.UnixMilli()
	return &ScheduledJob{
		JobID:           ruleID,
		JobName:         ProtectionJobName,
		IntervalSeconds: int64(interval / time.Second),
		Status:          JobStatusActive,
		NextRunAt:       ms,
		CreatedAt:       ms,
		UpdatedAt:       ms,
	}
}

// Interval returns the configured recurrence.
func (j *ScheduledJob) Interval() time.Duration {
	return time.Duration(j.IntervalSeconds) * time.Second
}

// NextRunAfter computes the next due time once the job is dispatched at t.
func (j *ScheduledJob) NextRunAfter(t time.Time) time.Time {
	return t.Add(j.Interval())
}

// DispatchMessage is the queue payload for one due protection job. The
// consumer hands LeaseToken back to release the per-rule lease.
type DispatchMessage struct {
	RuleID       string `json:"rule_id"`
	LeaseToken   string `json:"lease_token"`
	DispatchedAt int64  `json:"dispatched_at"`
}
