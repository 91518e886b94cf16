package lending

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"loanguard/internal/chain"
	"loanguard/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callClient answers eth_call with a fixed output and records the request.
type callClient struct {
	chain.Client
	output []byte
	err    error
	calls  []ethereum.CallMsg
}

func (c *callClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.calls = append(c.calls, msg)
	return c.output, c.err
}

func packOutputs(t *testing.T, abiJSON, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestRiskReaderHealthFactor(t *testing.T) {
	hf, _ := new(big.Int).SetString("1050000000000000000", 10)
	client := &callClient{output: packOutputs(t, poolABI, "getUserAccountData",
		big.NewInt(3_000_00000000), big.NewInt(2_000_00000000), big.NewInt(0),
		big.NewInt(8250), big.NewInt(8000), hf)}

	reader, err := NewRiskReader(client, testPool, logger.NewNopLogger())
	require.NoError(t, err)

	got, err := reader.HealthFactor(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, "1.05", got.String())

	require.Len(t, client.calls, 1)
	assert.Equal(t, testPool, *client.calls[0].To)
}

func TestRiskReaderNoDebt(t *testing.T) {
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	client := &callClient{output: packOutputs(t, poolABI, "getUserAccountData",
		big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), maxUint)}

	reader, err := NewRiskReader(client, testPool, logger.NewNopLogger())
	require.NoError(t, err)

	got, err := reader.HealthFactor(context.Background(), testOwner)
	require.NoError(t, err)
	assert.True(t, got.GreaterThan(FromWad(big.NewInt(1_200_000_000_000_000_000))))
}

func TestRiskReaderCallFailure(t *testing.T) {
	client := &callClient{err: assert.AnError}
	reader, err := NewRiskReader(client, testPool, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = reader.HealthFactor(context.Background(), testOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

// recordingSender captures transactions instead of signing them.
type recordingSender struct {
	address common.Address
	reqs    []chain.TxRequest
	err     error
}

func (s *recordingSender) Address() common.Address { return s.address }

func (s *recordingSender) SendAndWait(ctx context.Context, req chain.TxRequest) (*types.Receipt, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.HexToHash("0x77")}, nil
}

func TestTokenApprover(t *testing.T) {
	client := &callClient{output: packOutputs(t, erc20ABI, "allowance", big.NewInt(42))}
	sender := &recordingSender{address: testPayer}

	approver, err := NewTokenApprover(client, testAsset, sender)
	require.NoError(t, err)
	assert.Equal(t, testPayer, approver.Address())

	allowance, err := approver.Allowance(context.Background(), testPool)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), allowance)
	assert.Equal(t, testAsset, *client.calls[0].To)

	hash, err := approver.Approve(context.Background(), testPool, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x77"), hash)

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, testAsset, sender.reqs[0].To)
	assert.Equal(t, "approve", sender.reqs[0].Label)

	parsed, _ := abi.JSON(strings.NewReader(erc20ABI))
	args, err := parsed.Methods["approve"].Inputs.Unpack(sender.reqs[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testPool, args[0])
	assert.Equal(t, big.NewInt(100), args[1])
}

func TestPoolRepayerPacksVariableRateRepay(t *testing.T) {
	sender := &recordingSender{address: common.HexToAddress("0xde1e")}
	repayer, err := NewPoolRepayer(&callClient{}, testPool, 2, sender)
	require.NoError(t, err)

	_, err = repayer.Repay(context.Background(), testAsset, big.NewInt(100_000_000), testOwner)
	require.NoError(t, err)

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, testPool, sender.reqs[0].To)

	parsed, _ := abi.JSON(strings.NewReader(poolABI))
	args, err := parsed.Methods["repay"].Inputs.Unpack(sender.reqs[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testAsset, args[0])
	assert.Equal(t, big.NewInt(100_000_000), args[1])
	assert.Equal(t, big.NewInt(2), args[2])
	assert.Equal(t, testOwner, args[3])
}

func TestPoolRepayerPropagatesRevert(t *testing.T) {
	sender := &recordingSender{err: chain.ErrReverted}
	repayer, err := NewPoolRepayer(&callClient{}, testPool, 2, sender)
	require.NoError(t, err)

	_, err = repayer.Repay(context.Background(), testAsset, big.NewInt(1), testOwner)
	assert.True(t, chain.IsRevertError(err))
}
