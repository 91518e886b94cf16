package main

import (
	"loanguard/commons/config"
	"loanguard/commons/server"
	internalConfig "loanguard/internal/config"
	protection_init "loanguard/internal/consumer/protection_queue/init"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.WithLogger(config.ProvideFxLogger),
		fx.Provide(
			internalConfig.ProvideMonitorSettings,
			config.ProvideLogger,
			config.ProvideRouteDependencies,
			config.ProvideSQSClient,
			config.ProvideDynamoDBClient,
			config.ProvideRedisCache,
			config.ProvideLocker,
			internalConfig.ProvideRuleRepository,
			internalConfig.ProvideJobRepository,
			internalConfig.ProvideDispatchSender,
			internalConfig.ProvideScheduler,
			internalConfig.ProvideEthClient,
			internalConfig.ProvideNonceManager,
			internalConfig.ProvideReceiptWaiter,
			internalConfig.ProvideTransactors,
			internalConfig.ProvideKeyring,
			internalConfig.ProvideRepaymentExecutor,
			internalConfig.ProvideRiskReader,
			internalConfig.ProvideHermesClient,
			internalConfig.ProvidePriceSync,
			internalConfig.ProvideTriggerPolicy,
			internalConfig.ProvideConditionEvaluator,
			internalConfig.ProvideProtectionJob,
			internalConfig.ProvideMonitorHealthHandler,
			internalConfig.ProvideMonitorRouterConfig,
			internalConfig.ProvideMonitorServerConfig,
			internalConfig.ProvideMonitorRouteInitializer,
			config.ProvideRouter,
			server.NewHTTPServer,
		),
		protection_init.ProtectionQueueModule(),
		fx.Invoke(internalConfig.LogStartup),
		fx.Invoke(internalConfig.ManageSchedulerLifecycle),
	).Run()
}
