package handler

import (
	"context"

	"loanguard/commons/error_handler"
	"loanguard/commons/handler"
	"loanguard/internal/dto"
	"loanguard/internal/logger"
)

type HealthHandler struct {
	logger      logger.Logger
	serviceName string
	nodeID      string
	environment string
}

func NewHealthHandler(log logger.Logger, serviceName, nodeID, environment string) *HealthHandler {
	return &HealthHandler{
		logger:      log.With(logger.String("component", "health_handler")),
		serviceName: serviceName,
		nodeID:      nodeID,
		environment: environment,
	}
}

func (h *HealthHandler) HealthService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.HealthCheckRequest],
) (dto.HealthCheckResponse, *error_handler.ErrorCollection) {
	h.logger.Debug("health check requested")

	return dto.HealthCheckResponse{
		Status:      "healthy",
		Service:     h.serviceName,
		NodeID:      h.nodeID,
		Environment: h.environment,
	}, nil
}
