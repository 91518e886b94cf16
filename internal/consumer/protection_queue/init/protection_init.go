package protection_queue

import (
	"context"

	protection "loanguard/internal/consumer/protection_queue/iface"
	protectionImpl "loanguard/internal/consumer/protection_queue/impl"
	"loanguard/internal/domain"
	"loanguard/internal/logger"
	queue "loanguard/internal/queue/iface"
	"loanguard/internal/queue/sqs"
	"loanguard/internal/service"
	"loanguard/internal/settings"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
)

// ProtectionQueueParams holds dependencies for the protection queue
type ProtectionQueueParams struct {
	fx.In

	Logger    logger.Logger
	Settings  *settings.Settings
	SQSClient *awssqs.Client
	Job       *service.ProtectionJob
	Scheduler *service.Scheduler
}

// ProtectionQueueResult holds what this module provides
type ProtectionQueueResult struct {
	fx.Out

	Consumer protection.ProtectionConsumer
	Queue    queue.Queue `name:"protection_queue"`
}

// ProvideProtectionQueueAndConsumer wires the consumer as the queue's processor
func ProvideProtectionQueueAndConsumer(params ProtectionQueueParams) ProtectionQueueResult {
	consumer := protectionImpl.NewProtectionConsumer(params.Logger, params.Job, params.Scheduler)

	lease := params.Settings.Schedule.LeaseTTL
	q := sqs.NewSQSQueue[domain.DispatchMessage](
		params.SQSClient,
		sqs.QueueConfig{
			QueueURL:          params.Settings.AWS.ProtectionQueueURL,
			WorkerCount:       params.Settings.Schedule.WorkerCount,
			MaxMessages:       1,
			WaitTimeSeconds:   20,
			VisibilityTimeout: int32(lease.Seconds()),
			ProcessTimeout:    lease,
		},
		consumer,
		params.Logger,
	)

	return ProtectionQueueResult{
		Consumer: consumer,
		Queue:    q,
	}
}

// ProtectionQueueModule provides the FX module for the protection queue
func ProtectionQueueModule() fx.Option {
	return fx.Options(
		fx.Provide(
			ProvideProtectionQueueAndConsumer,
		),
		fx.Invoke(func(params struct {
			fx.In
			Lifecycle fx.Lifecycle
			Queue     queue.Queue `name:"protection_queue"`
			Logger    logger.Logger
		}) {
			params.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					params.Logger.Info("starting protection queue consumer")
					return params.Queue.StartConsumer(ctx)
				},
				OnStop: func(ctx context.Context) error {
					params.Logger.Info("stopping protection queue consumer")
					return params.Queue.StopConsumer(ctx)
				},
			})
		}),
	)
}
