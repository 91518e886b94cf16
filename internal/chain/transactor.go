package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	coordinator "loanguard/internal/coordinator/iface"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// gasBufferPercent is added on top of the node's gas estimate.
const gasBufferPercent = 20

// TxRequest describes a contract call to sign and send.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Label names the call in logs, e.g. "approve".
	Label string
}

// Transactor signs and sends EIP-1559 transactions for one account.
type Transactor struct {
	client  Client
	signer  *Signer
	chainID *big.Int
	nonces  *NonceManager
	locker  coordinator.Locker
	waiter  *ReceiptWaiter
	logger  logger.Logger
}

func NewTransactor(client Client, signer *Signer, chainID *big.Int, nonces *NonceManager, locker coordinator.Locker, waiter *ReceiptWaiter, log logger.Logger) *Transactor {
	return &Transactor{
		client:  client,
		signer:  signer,
		chainID: chainID,
		nonces:  nonces,
		locker:  locker,
		waiter:  waiter,
		logger: log.With(
			logger.String("component", "transactor"),
			logger.String("account", signer.Address().Hex()),
		),
	}
}

// Address returns the sending account.
func (t *Transactor) Address() common.Address {
	return t.signer.Address()
}

// Send signs and broadcasts req under the signer lock and returns its hash.
func (t *Transactor) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	from := t.signer.Address()
	unlock, err := t.locker.Lock(ctx, "signer-"+strings.ToLower(from.Hex()))
	if err != nil {
		return common.Hash{}, err
	}
	defer func() {
		if err := unlock(); err != nil {
			t.logger.Warn("failed to release signer lock", logger.Error(err))
		}
	}()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	gas, err := t.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: req.Data})
	if err != nil {
		if isRevert(err) {
			return common.Hash{}, fmt.Errorf("failed to estimate gas for %s: %v: %w", req.Label, err, ErrReverted)
		}
		return common.Hash{}, fmt.Errorf("failed to estimate gas for %s: %w", req.Label, err)
	}
	gas += gas * gasBufferPercent / 100

	tipCap, feeCap, err := t.fees(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := t.nonces.Next(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.signer.key)
	if err != nil {
		t.nonces.Reset(from)
		return common.Hash{}, fmt.Errorf("failed to sign %s: %w", req.Label, err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		t.nonces.Reset(from)
		if isRevert(err) {
			return common.Hash{}, fmt.Errorf("failed to send %s: %v: %w", req.Label, err, ErrReverted)
		}
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", req.Label, err)
	}

	t.logger.Info("transaction sent",
		logger.String("label", req.Label),
		logger.String("tx_hash", signed.Hash().Hex()),
		logger.Uint64("nonce", nonce),
		logger.Uint64("gas", gas))

	return signed.Hash(), nil
}

// SendAndWait sends req and blocks until its receipt is confirmed.
func (t *Transactor) SendAndWait(ctx context.Context, req TxRequest) (*types.Receipt, error) {
	hash, err := t.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	receipt, err := t.waiter.Wait(ctx, hash)
	if err != nil {
		// A dropped or replaced tx leaves the local counter ahead of the node,
		// which would gap every later nonce. Start again from the pending nonce.
		t.nonces.Reset(t.signer.Address())
		t.logger.Error("transaction not confirmed",
			logger.String("label", req.Label),
			logger.String("tx_hash", hash.Hex()),
			logger.Error(err))
		return nil, fmt.Errorf("failed to confirm %s: %w", req.Label, err)
	}

	t.logger.Info("transaction confirmed",
		logger.String("label", req.Label),
		logger.String("tx_hash", hash.Hex()),
		logger.Any("block", receipt.BlockNumber))
	return receipt, nil
}

func (t *Transactor) fees(ctx context.Context) (*big.Int, *big.Int, error) {
	tipCap, err := t.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	head, err := t.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch latest header: %w", err)
	}

	feeCap := new(big.Int).Set(tipCap)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return tipCap, feeCap, nil
}
