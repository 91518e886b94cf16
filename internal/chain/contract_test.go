package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const balanceABI = `[{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

func TestContractCallRoundTrip(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(balanceABI))
	require.NoError(t, err)
	out, err := parsed.Methods["balanceOf"].Outputs.Pack(big.NewInt(42))
	require.NoError(t, err)

	client := newFakeClient()
	client.callOutput = out
	addr := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	c, err := NewContract(client, addr, balanceABI)
	require.NoError(t, err)

	values, err := c.Call(context.Background(), "balanceOf", common.HexToAddress("0x1"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, big.NewInt(42), values[0])
	assert.Equal(t, &addr, client.lastCall.To)
}

func TestContractCallErrors(t *testing.T) {
	client := newFakeClient()
	c, err := NewContract(client, common.HexToAddress("0xcc"), balanceABI)
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "balanceOf", common.HexToAddress("0x1"))
	require.Error(t, err, "empty output")

	client.callErr = errors.New("execution reverted")
	_, err = c.Call(context.Background(), "balanceOf", common.HexToAddress("0x1"))
	assert.True(t, IsRevertError(err))

	_, err = c.Pack("missing")
	assert.Error(t, err)
}

func TestNewContractRejectsBadABI(t *testing.T) {
	_, err := NewContract(newFakeClient(), common.Address{}, "{not json")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	_, err := LoadSigner("")
	assert.Error(t, err)

	_, err = LoadSigner("0xzz")
	assert.Error(t, err)

	s := testSigner(t)
	assert.NotEqual(t, common.Address{}, s.Address())
}
