package config

import (
	"context"
	"fmt"

	"loanguard/commons/routes"
	cache "loanguard/internal/cache/iface"
	redisCache "loanguard/internal/cache/redis"
	coordinator "loanguard/internal/coordinator/iface"
	localCoordinator "loanguard/internal/coordinator/local"
	zkCoordinator "loanguard/internal/coordinator/zk"
	"loanguard/internal/logger"
	"loanguard/internal/settings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// ProvideLogger creates the logger for the configured environment
func ProvideLogger(cfg *settings.Settings) (logger.Logger, error) {
	return logger.NewZapLoggerForEnvironment(cfg.Service.Environment)
}

// ProvideFxLogger creates the FX event logger using the application logger
func ProvideFxLogger(log logger.Logger) fxevent.Logger {
	if zl, ok := log.(*logger.ZapLogger); ok {
		return &fxevent.ZapLogger{Logger: zl.Logger()}
	}
	return fxevent.NopLogger
}

// ProvideRouteDependencies creates route dependencies
func ProvideRouteDependencies(log logger.Logger) routes.RouteDependencies {
	return routes.RouteDependencies{
		Logger: log,
	}
}

// ProvideRouter creates and configures the Gin router with all routes
func ProvideRouter(
	config routes.RouterConfig,
	deps routes.RouteDependencies,
	routeInitializer func(*gin.Engine, routes.RouteDependencies),
) *gin.Engine {
	router := routes.NewRouter(config, deps)
	routeInitializer(router, deps)
	return router
}

func loadAWSConfig(region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// ProvideSQSClient provides an SQS client (for LocalStack or AWS)
func ProvideSQSClient(cfg *settings.Settings) (*sqs.Client, error) {
	awsCfg, err := loadAWSConfig(cfg.AWS.Region)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.AWS.SQSEndpoint
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ProvideDynamoDBClient provides DynamoDB client
func ProvideDynamoDBClient(cfg *settings.Settings) (*awsdynamodb.Client, error) {
	awsCfg, err := loadAWSConfig(cfg.AWS.Region)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.AWS.DynamoDBEndpoint
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ProvideRedisCache provides a Redis cache client
func ProvideRedisCache(lc fx.Lifecycle, cfg *settings.Settings, log logger.Logger) (cache.Cache, error) {
	c, err := redisCache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}

// ProvideLocker provides the signer lock: ZooKeeper when servers are
// configured, otherwise an in-process lock
func ProvideLocker(lc fx.Lifecycle, cfg *settings.Settings, log logger.Logger) (coordinator.Locker, error) {
	var (
		locker coordinator.Locker
		err    error
	)
	if cfg.DistributedLocking() {
		locker, err = zkCoordinator.NewZKCoordinator(cfg.ZooKeeper.Servers, cfg.ZooKeeper.SessionTimeout, cfg.ZooKeeper.LockRoot, log)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info("zookeeper not configured, using in-process signer lock")
		locker = localCoordinator.NewLocker()
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return locker.Close()
		},
	})
	return locker, nil
}
