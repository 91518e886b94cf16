package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptWaiter polls for a transaction receipt until it is mined with the
// required confirmations or the timeout elapses.
type ReceiptWaiter struct {
	client        Client
	pollInterval  time.Duration
	timeout       time.Duration
	confirmations uint64
	logger        logger.Logger
}

func NewReceiptWaiter(client Client, pollInterval, timeout time.Duration, confirmations uint64, log logger.Logger) *ReceiptWaiter {
	return &ReceiptWaiter{
		client:        client,
		pollInterval:  pollInterval,
		timeout:       timeout,
		confirmations: confirmations,
		logger:        log.With(logger.String("component", "receipt_waiter")),
	}
}

// Wait returns the successful receipt for txHash. A status 0 receipt yields
// ErrReverted; running out of time yields ErrConfirmationTimeout.
func (w *ReceiptWaiter) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.poll(waitCtx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("transaction %s after %s: %w", txHash.Hex(), w.timeout, ErrConfirmationTimeout)
		case <-ticker.C:
		}
	}
}

// poll returns (nil, nil) while the transaction is pending or not yet
// confirmed deep enough.
func (w *ReceiptWaiter) poll(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := w.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			w.logger.Warn("receipt lookup failed, retrying",
				logger.String("tx_hash", txHash.Hex()),
				logger.Error(err))
		}
		return nil, nil
	}
	if receipt == nil {
		return nil, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s: %w", txHash.Hex(), ErrReverted)
	}
	if w.confirmations <= 1 {
		return receipt, nil
	}

	header, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil || header == nil || header.Number == nil || receipt.BlockNumber == nil {
		return nil, nil
	}
	if header.Number.Cmp(receipt.BlockNumber) < 0 {
		return nil, nil
	}
	confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	confirmed.Add(confirmed, big.NewInt(1))
	if confirmed.Cmp(new(big.Int).SetUint64(w.confirmations)) < 0 {
		return nil, nil
	}
	return receipt, nil
}
