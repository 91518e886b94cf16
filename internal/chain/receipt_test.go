package chain

import (
	"context"
	"testing"
	"time"

	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWaiter(client Client, timeout time.Duration, confirmations uint64) *ReceiptWaiter {
	return NewReceiptWaiter(client, 5*time.Millisecond, timeout, confirmations, logger.NewNopLogger())
}

func TestReceiptWaiterPendingThenMined(t *testing.T) {
	client := newFakeClient()
	client.receipts = []*types.Receipt{nil, nil, successReceipt(90)}

	receipt, err := newWaiter(client, time.Second, 0).Wait(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.GreaterOrEqual(t, client.receiptHits, 3)
}

func TestReceiptWaiterRevert(t *testing.T) {
	client := newFakeClient()
	client.receipts = []*types.Receipt{{Status: types.ReceiptStatusFailed, BlockNumber: big100()}}

	_, err := newWaiter(client, time.Second, 0).Wait(context.Background(), common.HexToHash("0xaa"))
	require.Error(t, err)
	assert.True(t, IsRevertError(err))
}

func TestReceiptWaiterTimeout(t *testing.T) {
	client := newFakeClient()

	_, err := newWaiter(client, 30*time.Millisecond, 0).Wait(context.Background(), common.HexToHash("0xaa"))
	require.Error(t, err)
	assert.True(t, IsConfirmationTimeoutError(err))
}

func TestReceiptWaiterParentCancelled(t *testing.T) {
	client := newFakeClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWaiter(client, time.Second, 0).Wait(ctx, common.HexToHash("0xaa"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsConfirmationTimeoutError(err))
}

func TestReceiptWaiterRetriesRPCErrors(t *testing.T) {
	client := newFakeClient()
	client.receiptErrs = []error{errRPCDown}
	client.receipts = []*types.Receipt{nil, successReceipt(99)}

	_, err := newWaiter(client, time.Second, 0).Wait(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)
}

func TestReceiptWaiterConfirmations(t *testing.T) {
	client := newFakeClient()
	client.receipts = []*types.Receipt{successReceipt(100)}

	// Head is block 100: one confirmation only
	_, err := newWaiter(client, 30*time.Millisecond, 3).Wait(context.Background(), common.HexToHash("0xaa"))
	require.Error(t, err)
	assert.True(t, IsConfirmationTimeoutError(err))

	client.head = big102()
	_, err = newWaiter(client, time.Second, 3).Wait(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)
}
