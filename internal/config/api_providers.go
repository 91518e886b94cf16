package config

import (
	"loanguard/commons/routes"
	"loanguard/commons/server"
	"loanguard/internal/handler"
	"loanguard/internal/logger"
	repository "loanguard/internal/repository/iface"
	internalRoutes "loanguard/internal/routes"
	"loanguard/internal/service"
	"loanguard/internal/settings"

	"github.com/gin-gonic/gin"
)

const apiServiceName = "loanguard-api"

func ProvideAPISettings() (*settings.Settings, error) {
	return loadSettings(settings.RoleAPI)
}

// Service Providers

func ProvideRuleService(
	rules repository.RuleRepository,
	scheduler *service.Scheduler,
	cfg *settings.Settings,
	log logger.Logger,
) service.RuleService {
	return service.NewRuleService(rules, scheduler, cfg.Rules, cfg.Lending.DefaultPayerAddress, cfg.Lending.PayerAddresses, cfg.Schedule.Interval, log)
}

// HTTP Providers

func ProvideRuleHandler(rules service.RuleService, log logger.Logger) *handler.RuleHandler {
	return handler.NewRuleHandler(rules, log)
}

func ProvideAPIHealthHandler(cfg *settings.Settings, log logger.Logger) *handler.HealthHandler {
	return handler.NewHealthHandler(log, apiServiceName, cfg.Service.NodeID, cfg.Service.Environment)
}

func ProvideAPIRouterConfig() routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: apiServiceName,
		Version:     "v1",
	}
}

func ProvideAPIServerConfig(cfg *settings.Settings) server.ServerConfig {
	return server.ServerConfig{
		Port: cfg.Service.APIPort,
	}
}

func ProvideAPIRouteInitializer(
	healthHandler *handler.HealthHandler,
	ruleHandler *handler.RuleHandler,
) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitRuleRoutes(router, ruleHandler, deps.Logger)
		internalRoutes.InitMetricsRoute(router)
	}
}
