package oracle

import (
	"context"
	"fmt"
	"math/big"

	"loanguard/internal/chain"
	"loanguard/internal/domain"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

const pythABI = `[{"inputs":[{"name":"updateData","type":"bytes[]"}],"name":"getUpdateFee","outputs":[{"name":"feeAmount","type":"uint256"}],"stateMutability":"view","type":"function"}]`

const consumerABI = `[
  {"inputs":[{"name":"priceUpdate","type":"bytes[]"}],"name":"updatePrices","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[],"name":"getETHPrice","outputs":[{"name":"price","type":"int64"},{"name":"expo","type":"int32"}],"stateMutability":"view","type":"function"}
]`

// TxSender is the part of chain.Transactor used to push price updates.
type TxSender interface {
	SendAndWait(ctx context.Context, req chain.TxRequest) (*types.Receipt, error)
}

// PriceSync refreshes the on-chain oracle price and reads it back.
type PriceSync struct {
	source   UpdateSource
	feedID   string
	pyth     *chain.Contract
	consumer *chain.Contract
	sender   TxSender
	logger   logger.Logger
}

func NewPriceSync(client chain.Client, source UpdateSource, feedID string, pythAddress, consumerAddress common.Address, sender TxSender, log logger.Logger) (*PriceSync, error) {
	pyth, err := chain.NewContract(client, pythAddress, pythABI)
	if err != nil {
		return nil, err
	}
	consumer, err := chain.NewContract(client, consumerAddress, consumerABI)
	if err != nil {
		return nil, err
	}
	return &PriceSync{
		source:   source,
		feedID:   feedID,
		pyth:     pyth,
		consumer: consumer,
		sender:   sender,
		logger:   log.With(logger.String("component", "price_sync")),
	}, nil
}

// Sync pushes the latest signed update on-chain, paying the oracle fee, and
// returns the price stored by the consumer contract.
func (s *PriceSync) Sync(ctx context.Context) (decimal.Decimal, error) {
	updates, err := s.source.LatestPriceUpdate(ctx, s.feedID)
	if err != nil {
		return decimal.Zero, err
	}

	values, err := s.pyth.Call(ctx, "getUpdateFee", updates)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to quote update fee: %w", err)
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("failed to quote update fee: unexpected output type %T", values[0])
	}

	data, err := s.consumer.Pack("updatePrices", updates)
	if err != nil {
		return decimal.Zero, err
	}
	receipt, err := s.sender.SendAndWait(ctx, chain.TxRequest{
		To:    s.consumer.Address(),
		Data:  data,
		Value: fee,
		Label: "updatePrices",
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to push price update: %w", err)
	}

	price, err := s.StoredPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Info("oracle price synced",
		logger.String("price", price.String()),
		logger.String("fee_wei", fee.String()),
		logger.String("tx_hash", receipt.TxHash.Hex()))
	return price, nil
}

// StoredPrice reads the consumer contract's last stored price.
func (s *PriceSync) StoredPrice(ctx context.Context) (decimal.Decimal, error) {
	values, err := s.consumer.Call(ctx, "getETHPrice")
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read stored price: %w", err)
	}
	if len(values) != 2 {
		return decimal.Zero, fmt.Errorf("failed to read stored price: %w", domain.ErrMalformedPrice)
	}
	mantissa, ok1 := values[0].(int64)
	expo, ok2 := values[1].(int32)
	if !ok1 || !ok2 || mantissa <= 0 {
		return decimal.Zero, fmt.Errorf("failed to read stored price (%v, %v): %w", values[0], values[1], domain.ErrMalformedPrice)
	}
	return decimal.New(mantissa, expo), nil
}
