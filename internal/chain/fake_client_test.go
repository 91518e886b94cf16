package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu sync.Mutex

	callOutput []byte
	callErr    error
	lastCall   ethereum.CallMsg

	gas         uint64
	estimateErr error

	pendingNonce uint64
	sendErr      error
	sent         []*types.Transaction

	baseFee *big.Int
	head    *big.Int

	// receipts returned in order for each TransactionReceipt call; the last
	// one repeats.
	receipts    []*types.Receipt
	receiptErrs []error
	receiptHits int
}

func newFakeClient() *fakeClient {
	return &fakeClient{gas: 100_000, baseFee: big.NewInt(10), head: big.NewInt(100)}
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = msg
	return f.callOutput, f.callErr
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gas, f.estimateErr
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingNonce, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: f.head, BaseFee: f.baseFee}, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.receiptHits
	f.receiptHits++
	if i < len(f.receiptErrs) && f.receiptErrs[i] != nil {
		return nil, f.receiptErrs[i]
	}
	if len(f.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	if i >= len(f.receipts) {
		i = len(f.receipts) - 1
	}
	if f.receipts[i] == nil {
		return nil, ethereum.NotFound
	}
	return f.receipts[i], nil
}

func successReceipt(block int64) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(block)}
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := LoadSigner("0x" + hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return signer
}

var errRPCDown = errors.New("connection refused")
