package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobExecutionsTotal counts protection job runs by outcome
	JobExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanguard_job_executions_total",
			Help: "Total number of protection job executions by status, stage and error kind",
		},
		[]string{"status", "stage", "error_kind"},
	)

	// JobExecutionDuration tracks how long protection job runs take
	JobExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loanguard_job_execution_duration_seconds",
			Help:    "Duration of protection job executions in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// RepaymentsTotal counts confirmed repayments
	RepaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanguard_repayments_total",
			Help: "Total number of confirmed repayments, by whether an approval was sent",
		},
		[]string{"approval_performed"},
	)

	// OraclePrice is the last price read back from the oracle consumer
	OraclePrice = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loanguard_oracle_price",
			Help: "Last synced oracle price",
		},
	)

	// SchedulerDispatchesTotal counts due jobs handed to the queue
	SchedulerDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanguard_scheduler_dispatches_total",
			Help: "Total number of scheduler dispatch attempts by result",
		},
		[]string{"result"},
	)
)
