package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ProtectionRule is a user's instruction to repay RepayAmount of the debt
// asset on behalf of User once the price and health factor both enter the
// danger zone.
type ProtectionRule struct {
	RuleID          string `json:"rule_id" dynamodbav:"rule_id"`
	User            string `json:"user" dynamodbav:"user"`
	PayerAddress    string `json:"payer_address,omitempty" dynamodbav:"payer_address,omitempty"`
	TriggerPrice    string `json:"trigger_price" dynamodbav:"trigger_price"`
	RepayAmount     string `json:"repay_amount" dynamodbav:"repay_amount"`
	IsActive        bool   `json:"is_active" dynamodbav:"is_active"`
	Protocol        string `json:"protocol" dynamodbav:"protocol"`
	ChainID         int64  `json:"chain_id" dynamodbav:"chain_id"`
	CollateralAsset string `json:"collateral_asset" dynamodbav:"collateral_asset"`
	DebtAsset       string `json:"debt_asset" dynamodbav:"debt_asset"`
	CreatedAt       int64  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       int64  `json:"updated_at" dynamodbav:"updated_at"`
}

// NewProtectionRule creates an active rule. Optional fields are filled by the
// caller.
func NewProtectionRule(ruleID, user, payer, triggerPrice, repayAmount string) *ProtectionRule {
	now := time.Now().UnixMilli()
	return &ProtectionRule{
		RuleID:       ruleID,
		User:         user,
		PayerAddress: payer,
		TriggerPrice: triggerPrice,
		RepayAmount:  repayAmount,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks addresses and that both amounts are positive decimals.
func (r *ProtectionRule) Validate() error {
	if strings.TrimSpace(r.RuleID) == "" {
		return NewValidationError("ruleId", "is required")
	}
	if !common.IsHexAddress(r.User) {
		return NewValidationError("user", "must be a hex address")
	}
	if r.PayerAddress != "" && !common.IsHexAddress(r.PayerAddress) {
		return NewValidationError("payerAddress", "must be a hex address")
	}
	if _, err := r.TriggerPriceDecimal(); err != nil {
		return NewValidationError("triggerPrice", "must be a positive decimal")
	}
	if _, err := r.RepayAmountDecimal(); err != nil {
		return NewValidationError("repayAmount", "must be a positive decimal")
	}
	return nil
}

// TriggerPriceDecimal parses TriggerPrice.
func (r *ProtectionRule) TriggerPriceDecimal() (decimal.Decimal, error) {
	return parsePositive(r.TriggerPrice)
}

// RepayAmountDecimal parses RepayAmount in debt-asset display units.
func (r *ProtectionRule) RepayAmountDecimal() (decimal.Decimal, error) {
	return parsePositive(r.RepayAmount)
}

// UserAddress returns the debt owner as a checksummed address.
func (r *ProtectionRule) UserAddress() common.Address {
	return common.HexToAddress(r.User)
}

// Payer returns the payer address. The zero address selects the default
// payer.
func (r *ProtectionRule) Payer() common.Address {
	if r.PayerAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(r.PayerAddress)
}

func parsePositive(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}
