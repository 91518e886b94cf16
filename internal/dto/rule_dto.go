package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"loanguard/internal/domain"
)

// DecimalString accepts a JSON string or number and keeps its exact text.
type DecimalString string

func (d *DecimalString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DecimalString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a decimal string or number, got %s", data)
	}
	*d = DecimalString(n.String())
	return nil
}

// CreateRuleRequest represents request to create a protection rule
type CreateRuleRequest struct {
	User            string        `json:"user"`
	TriggerPrice    DecimalString `json:"triggerPrice"`
	RepayAmount     DecimalString `json:"repayAmount"`
	PayerAddress    string        `json:"payerAddress,omitempty"`
	Protocol        string        `json:"protocol,omitempty"`
	ChainID         int64         `json:"chainId,omitempty"`
	CollateralAsset string        `json:"collateralAsset,omitempty"`
	DebtAsset       string        `json:"debtAsset,omitempty"`
}

// GetRuleRequest represents request to fetch a rule by path id
type GetRuleRequest struct{}

// RuleResponse is the API view of a protection rule
type RuleResponse struct {
	RuleID          string `json:"ruleId"`
	User            string `json:"user"`
	PayerAddress    string `json:"payerAddress,omitempty"`
	TriggerPrice    string `json:"triggerPrice"`
	RepayAmount     string `json:"repayAmount"`
	IsActive        bool   `json:"isActive"`
	Protocol        string `json:"protocol"`
	ChainID         int64  `json:"chainId"`
	CollateralAsset string `json:"collateralAsset"`
	DebtAsset       string `json:"debtAsset"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// NewRuleResponse converts a domain rule to its API view
func NewRuleResponse(rule *domain.ProtectionRule) RuleResponse {
	return RuleResponse{
		RuleID:          rule.RuleID,
		User:            rule.User,
		PayerAddress:    rule.PayerAddress,
		TriggerPrice:    rule.TriggerPrice,
		RepayAmount:     rule.RepayAmount,
		IsActive:        rule.IsActive,
		Protocol:        rule.Protocol,
		ChainID:         rule.ChainID,
		CollateralAsset: rule.CollateralAsset,
		DebtAsset:       rule.DebtAsset,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

// CreateRuleResponse represents response after creating a rule
type CreateRuleResponse struct {
	Message string        `json:"message"`
	Rule    *RuleResponse `json:"rule,omitempty"`
}

// HTTPStatus reports 201 Created on success.
func (CreateRuleResponse) HTTPStatus() int {
	return http.StatusCreated
}
