package routes

import (
	"net/http"

	"loanguard/commons/routes"
	"loanguard/internal/dto"
	"loanguard/internal/handler"
	"loanguard/internal/logger"

	"github.com/gin-gonic/gin"
)

func InitRuleRoutes(
	router *gin.Engine,
	ruleHandler *handler.RuleHandler,
	log logger.Logger,
) {
	rules := router.Group("/rules")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	// POST /rules - Create a protection rule and schedule it
	routes.RegisterRoute(
		rules,
		deps,
		routes.RouteOptions[dto.CreateRuleRequest, dto.CreateRuleResponse]{
			Path:        "",
			Method:      http.MethodPost,
			ServiceFunc: ruleHandler.CreateRuleService,
		},
	)

	// GET /rules/:rule_id - Fetch a rule
	routes.RegisterRoute(
		rules,
		deps,
		routes.RouteOptions[dto.GetRuleRequest, *dto.RuleResponse]{
			Path:        "/:rule_id",
			Method:      http.MethodGet,
			ServiceFunc: ruleHandler.GetRuleService,
		},
	)
}
