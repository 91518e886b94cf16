package main

import (
	"loanguard/commons/config"
	"loanguard/commons/server"
	internalConfig "loanguard/internal/config"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.WithLogger(config.ProvideFxLogger),
		fx.Provide(
			internalConfig.ProvideAPISettings,
			config.ProvideLogger,
			config.ProvideRouteDependencies,
			config.ProvideSQSClient,
			config.ProvideDynamoDBClient,
			config.ProvideRedisCache,
			internalConfig.ProvideRuleRepository,
			internalConfig.ProvideJobRepository,
			internalConfig.ProvideDispatchSender,
			internalConfig.ProvideScheduler,
			internalConfig.ProvideRuleService,
			internalConfig.ProvideRuleHandler,
			internalConfig.ProvideAPIHealthHandler,
			internalConfig.ProvideAPIRouterConfig,
			internalConfig.ProvideAPIServerConfig,
			internalConfig.ProvideAPIRouteInitializer,
			config.ProvideRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(func(*server.HTTPServer) {}),
	).Run()
}
