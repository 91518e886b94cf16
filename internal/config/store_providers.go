package config

import (
	"context"
	"os"

	"loanguard/commons/server"
	cache "loanguard/internal/cache/iface"
	"loanguard/internal/logger"
	queue "loanguard/internal/queue/iface"
	"loanguard/internal/queue/sqs"
	"loanguard/internal/repository/dynamodb"
	repository "loanguard/internal/repository/iface"
	"loanguard/internal/service"
	"loanguard/internal/settings"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
)

func loadSettings(role settings.Role) (*settings.Settings, error) {
	cfg, err := settings.Load(os.Getenv(settings.ConfigEnvVar), role)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Repository Providers

func ProvideRuleRepository(client *awsdynamodb.Client, cfg *settings.Settings, log logger.Logger) repository.RuleRepository {
	return dynamodb.NewRuleRepository(client, cfg.AWS.RulesTable, log)
}

func ProvideJobRepository(client *awsdynamodb.Client, cfg *settings.Settings, log logger.Logger) repository.JobRepository {
	return dynamodb.NewJobRepository(client, cfg.AWS.JobsTable, log)
}

// Scheduler Providers

// ProvideDispatchSender provides the send side of the protection queue
func ProvideDispatchSender(client *awssqs.Client, cfg *settings.Settings, log logger.Logger) queue.Sender {
	return sqs.NewSQSSender(client, cfg.AWS.ProtectionQueueURL, log)
}

func ProvideScheduler(
	cache cache.Cache,
	jobRepo repository.JobRepository,
	sender queue.Sender,
	cfg *settings.Settings,
	log logger.Logger,
) *service.Scheduler {
	return service.NewScheduler(cache, jobRepo, sender, service.SchedulerConfig{
		PollSpec: cfg.Schedule.PollSpec,
		LeaseTTL: cfg.Schedule.LeaseTTL,
		NodeID:   cfg.Service.NodeID,
	}, log)
}

// Lifecycle Management

func ManageSchedulerLifecycle(lc fx.Lifecycle, scheduler *service.Scheduler, srv *server.HTTPServer, log logger.Logger) {
	// Referencing the server keeps it in the graph so its hooks run.
	_ = srv

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting protection scheduler")
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping protection scheduler")
			return scheduler.Stop(ctx)
		},
	})
}
