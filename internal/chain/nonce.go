package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager hands out sequential nonces per account. The next nonce is the
// larger of the locally tracked value and the node's pending nonce, so
// transactions sent by other processes are picked up. Callers serialize sends
// for one account with a signer lock.
type NonceManager struct {
	client Client

	mu   sync.Mutex
	next map[common.Address]uint64
}

func NewNonceManager(client Client) *NonceManager {
	return &NonceManager{client: client, next: make(map[common.Address]uint64)}
}

// Next reserves the nonce for the account's next transaction.
func (m *NonceManager) Next(ctx context.Context, account common.Address) (uint64, error) {
	pending, err := m.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := pending
	if local, ok := m.next[account]; ok && local > nonce {
		nonce = local
	}
	m.next[account] = nonce + 1
	return nonce, nil
}

// Reset forgets the local counter after a failed send.
func (m *NonceManager) Reset(account common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.next, account)
}
