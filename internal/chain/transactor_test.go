package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"loanguard/internal/coordinator/local"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func big100() *big.Int { return big.NewInt(100) }
func big102() *big.Int { return big.NewInt(102) }

func newTestTransactor(t *testing.T, client *fakeClient) *Transactor {
	t.Helper()
	log := logger.NewNopLogger()
	return NewTransactor(
		client,
		testSigner(t),
		big.NewInt(11155111),
		NewNonceManager(client),
		local.NewLocker(),
		newWaiter(client, time.Second, 0),
		log,
	)
}

func TestTransactorSendBuildsDynamicFeeTx(t *testing.T) {
	client := newFakeClient()
	client.pendingNonce = 4
	tr := newTestTransactor(t, client)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	hash, err := tr.Send(context.Background(), TxRequest{To: to, Data: []byte{0x01}, Value: big.NewInt(5), Label: "test"})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, big.NewInt(2), tx.GasTipCap())
	assert.Equal(t, big.NewInt(22), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(5), tx.Value())
	assert.Equal(t, &to, tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), tx)
	require.NoError(t, err)
	assert.Equal(t, tr.Address(), sender)
}

func TestTransactorSequentialNonces(t *testing.T) {
	client := newFakeClient()
	tr := newTestTransactor(t, client)

	for i := 0; i < 3; i++ {
		_, err := tr.Send(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "test"})
		require.NoError(t, err)
	}
	require.Len(t, client.sent, 3)
	for i, tx := range client.sent {
		assert.Equal(t, uint64(i), tx.Nonce())
	}
}

func TestTransactorResetsNonceOnSendFailure(t *testing.T) {
	client := newFakeClient()
	client.pendingNonce = 9
	tr := newTestTransactor(t, client)

	client.sendErr = errRPCDown
	_, err := tr.Send(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "test"})
	require.Error(t, err)
	assert.False(t, IsRevertError(err))

	client.sendErr = nil
	_, err = tr.Send(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "test"})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), client.sent[0].Nonce())
}

func TestTransactorEstimateRevert(t *testing.T) {
	client := newFakeClient()
	client.estimateErr = errors.New("execution reverted: 39")
	tr := newTestTransactor(t, client)

	_, err := tr.Send(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "repay"})
	require.Error(t, err)
	assert.True(t, IsRevertError(err))
	assert.Empty(t, client.sent)
}

func TestTransactorSendAndWait(t *testing.T) {
	client := newFakeClient()
	client.receipts = []*types.Receipt{successReceipt(50)}
	tr := newTestTransactor(t, client)

	receipt, err := tr.SendAndWait(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "approve"})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), receipt.BlockNumber)
}

func TestTransactorSendAndWaitReverted(t *testing.T) {
	client := newFakeClient()
	client.receipts = []*types.Receipt{{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(50)}}
	tr := newTestTransactor(t, client)

	_, err := tr.SendAndWait(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "repay"})
	require.Error(t, err)
	assert.True(t, IsRevertError(err))
}

func TestTransactorResetsNonceAfterConfirmationTimeout(t *testing.T) {
	client := newFakeClient()
	client.pendingNonce = 5
	tr := newTestTransactor(t, client)
	tr.waiter = newWaiter(client, 30*time.Millisecond, 0)

	// The first tx is never mined and the node drops it from its pool
	_, err := tr.SendAndWait(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "updatePrices"})
	require.Error(t, err)
	assert.True(t, IsConfirmationTimeoutError(err))

	_, err = tr.Send(context.Background(), TxRequest{To: common.HexToAddress("0x1"), Label: "repay"})
	require.NoError(t, err)
	require.Len(t, client.sent, 2)
	assert.Equal(t, uint64(5), client.sent[0].Nonce())
	assert.Equal(t, uint64(5), client.sent[1].Nonce(), "no gap behind the dropped tx")
}
