package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus is the terminal state of one protection job run.
type ExecutionStatus string

const (
	ExecutionStatusInactive ExecutionStatus = "INACTIVE"
	ExecutionStatusSkipped  ExecutionStatus = "SKIPPED"
	ExecutionStatusRepaid   ExecutionStatus = "REPAID"
	ExecutionStatusFailed   ExecutionStatus = "FAILED"
)

// ExecutionStage names the step a run was in when it finished.
type ExecutionStage string

const (
	StageFetch      ExecutionStage = "fetch"
	StageEvaluate   ExecutionStage = "evaluate"
	StageRepay      ExecutionStage = "repay"
	StageDeactivate ExecutionStage = "deactivate"
	StageRemove     ExecutionStage = "remove"
)

// Evaluation holds the two observations a trigger decision is based on.
type Evaluation struct {
	HealthFactor decimal.Decimal `json:"health_factor"`
	Price        decimal.Decimal `json:"price"`
	Triggered    bool            `json:"triggered"`
}

// RepaymentOutcome describes the transactions sent by a successful repayment.
type RepaymentOutcome struct {
	ApprovalPerformed bool   `json:"approval_performed"`
	ApprovalHash      string `json:"approval_hash,omitempty"`
	RepayHash         string `json:"repay_hash"`
}

// ExecutionResult is what a protection job run returns in place of an error.
type ExecutionResult struct {
	RuleID     string            `json:"rule_id"`
	Status     ExecutionStatus   `json:"status"`
	Stage      ExecutionStage    `json:"stage"`
	Evaluation *Evaluation       `json:"evaluation,omitempty"`
	Outcome    *RepaymentOutcome `json:"outcome,omitempty"`
	Err        error             `json:"-"`
	Duration   time.Duration     `json:"duration"`
}

// Failed reports whether the run ended with an error.
func (r *ExecutionResult) Failed() bool {
	return r.Err != nil
}

// ErrorKind classifies Err for logs and metrics.
func (r *ExecutionResult) ErrorKind() ErrorKind {
	return ClassifyError(r.Err)
}
