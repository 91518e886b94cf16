package lending

import (
	"context"
	"fmt"
	"math/big"

	"loanguard/internal/chain"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AccountData is the decoded result of getUserAccountData. Base amounts are
// in the pool's base currency units.
type AccountData struct {
	TotalCollateralBase *big.Int
	TotalDebtBase       *big.Int
	HealthFactor        decimal.Decimal
}

// RiskReader reads account health from the lending pool.
type RiskReader struct {
	pool   *chain.Contract
	logger logger.Logger
}

func NewRiskReader(client chain.Client, poolAddress common.Address, log logger.Logger) (*RiskReader, error) {
	pool, err := chain.NewContract(client, poolAddress, poolABI)
	if err != nil {
		return nil, err
	}
	return &RiskReader{
		pool:   pool,
		logger: log.With(logger.String("component", "risk_reader")),
	}, nil
}

// AccountData queries the pool for user.
func (r *RiskReader) AccountData(ctx context.Context, user common.Address) (*AccountData, error) {
	values, err := r.pool.Call(ctx, "getUserAccountData", user)
	if err != nil {
		return nil, fmt.Errorf("failed to read account data: %w", err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("failed to read account data: unexpected output length %d", len(values))
	}

	collateral, ok1 := values[0].(*big.Int)
	debt, ok2 := values[1].(*big.Int)
	hf, ok3 := values[5].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("failed to read account data: unexpected output types")
	}

	data := &AccountData{
		TotalCollateralBase: collateral,
		TotalDebtBase:       debt,
		HealthFactor:        FromWad(hf),
	}
	r.logger.Debug("account data read",
		logger.String("user", user.Hex()),
		logger.String("health_factor", data.HealthFactor.String()))
	return data, nil
}

// HealthFactor returns the user's health factor as a decimal.
func (r *RiskReader) HealthFactor(ctx context.Context, user common.Address) (decimal.Decimal, error) {
	data, err := r.AccountData(ctx, user)
	if err != nil {
		return decimal.Zero, err
	}
	return data.HealthFactor, nil
}
