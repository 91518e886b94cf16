package handler

import (
	"context"

	"loanguard/commons/error_handler"
	"loanguard/commons/handler"
	"loanguard/internal/dto"
	"loanguard/internal/logger"
	"loanguard/internal/service"
)

const ruleCreatedMessage = "Protection rule created and scheduled successfully."

type RuleHandler struct {
	rules  service.RuleService
	logger logger.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules service.RuleService, log logger.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		logger: log.With(logger.String("component", "rule_handler")),
	}
}

// CreateRuleService handles rule creation
func (h *RuleHandler) CreateRuleService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.CreateRuleRequest],
) (dto.CreateRuleResponse, *error_handler.ErrorCollection) {
	req := ioutil.Body

	h.logger.Info("create rule request received",
		logger.String("user", req.User),
		logger.String("trigger_price", string(req.TriggerPrice)),
		logger.String("repay_amount", string(req.RepayAmount)))

	rule, err := h.rules.CreateRule(ctx, service.CreateRuleInput{
		User:            req.User,
		TriggerPrice:    string(req.TriggerPrice),
		RepayAmount:     string(req.RepayAmount),
		PayerAddress:    req.PayerAddress,
		Protocol:        req.Protocol,
		ChainID:         req.ChainID,
		CollateralAsset: req.CollateralAsset,
		DebtAsset:       req.DebtAsset,
	})
	if err != nil {
		h.logger.Error("failed to create rule", logger.Error(err))
		return dto.CreateRuleResponse{}, error_handler.FromError(err)
	}

	resp := dto.NewRuleResponse(rule)
	return dto.CreateRuleResponse{
		Message: ruleCreatedMessage,
		Rule:    &resp,
	}, nil
}

// GetRuleService returns a rule by id
func (h *RuleHandler) GetRuleService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.GetRuleRequest],
) (*dto.RuleResponse, *error_handler.ErrorCollection) {
	ruleID := ioutil.PathParams["rule_id"]

	rule, err := h.rules.GetRule(ctx, ruleID)
	if err != nil {
		h.logger.Warn("failed to get rule",
			logger.String("rule_id", ruleID),
			logger.Error(err))
		return nil, error_handler.FromError(err)
	}

	resp := dto.NewRuleResponse(rule)
	return &resp, nil
}
