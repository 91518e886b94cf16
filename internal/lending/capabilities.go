package lending

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"loanguard/internal/chain"
	"loanguard/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxSender is the part of chain.Transactor used to submit calls.
type TxSender interface {
	Address() common.Address
	SendAndWait(ctx context.Context, req chain.TxRequest) (*types.Receipt, error)
}

// Approver is the payer capability: it grants the pool a spending allowance
// over the debt asset. Alternative funding schemes plug in here.
type Approver interface {
	Address() common.Address
	Allowance(ctx context.Context, spender common.Address) (*big.Int, error)
	// Approve sets the allowance to amount and waits for confirmation.
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error)
}

// Repayer is the delegatee capability: it repays debt on behalf of another
// account.
type Repayer interface {
	Repay(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) (common.Hash, error)
}

type tokenApprover struct {
	token  *chain.Contract
	sender TxSender
}

// NewTokenApprover returns an Approver that signs ERC20 approvals with the
// payer's own key.
func NewTokenApprover(client chain.Client, token common.Address, sender TxSender) (Approver, error) {
	contract, err := chain.NewContract(client, token, erc20ABI)
	if err != nil {
		return nil, err
	}
	return &tokenApprover{token: contract, sender: sender}, nil
}

func (a *tokenApprover) Address() common.Address {
	return a.sender.Address()
}

func (a *tokenApprover) Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	values, err := a.token.Call(ctx, "allowance", a.sender.Address(), spender)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to read allowance: unexpected output type %T", values[0])
	}
	return allowance, nil
}

func (a *tokenApprover) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := a.token.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := a.sender.SendAndWait(ctx, chain.TxRequest{To: a.token.Address(), Data: data, Label: "approve"})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

type poolRepayer struct {
	pool   *chain.Contract
	sender TxSender
	mode   *big.Int
}

// NewPoolRepayer returns a Repayer that calls Pool.repay with the delegatee's
// key and the given interest rate mode.
func NewPoolRepayer(client chain.Client, pool common.Address, interestRateMode int64, sender TxSender) (Repayer, error) {
	contract, err := chain.NewContract(client, pool, poolABI)
	if err != nil {
		return nil, err
	}
	return &poolRepayer{pool: contract, sender: sender, mode: big.NewInt(interestRateMode)}, nil
}

func (r *poolRepayer) Repay(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) (common.Hash, error) {
	data, err := r.pool.Pack("repay", asset, amount, r.mode, onBehalfOf)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := r.sender.SendAndWait(ctx, chain.TxRequest{To: r.pool.Address(), Data: data, Label: "repay"})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// Keyring maps payer addresses to their Approver.
type Keyring struct {
	approvers map[common.Address]Approver
	fallback  common.Address
}

// NewKeyring indexes approvers by address. The first approver is the
// fallback for rules that name no payer.
func NewKeyring(approvers ...Approver) *Keyring {
	k := &Keyring{approvers: make(map[common.Address]Approver, len(approvers))}
	for i, a := range approvers {
		if i == 0 {
			k.fallback = a.Address()
		}
		k.approvers[a.Address()] = a
	}
	return k
}

// Lookup returns the approver for payer, or the fallback approver for the
// zero address.
func (k *Keyring) Lookup(payer common.Address) (Approver, error) {
	if payer == (common.Address{}) {
		payer = k.fallback
	}
	a, ok := k.approvers[payer]
	if !ok {
		return nil, fmt.Errorf("payer %s: %w", strings.ToLower(payer.Hex()), domain.ErrUnknownPayer)
	}
	return a, nil
}

// Addresses lists the configured payers.
func (k *Keyring) Addresses() []common.Address {
	out := make([]common.Address, 0, len(k.approvers))
	for addr := range k.approvers {
		out = append(out, addr)
	}
	return out
}
