package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerExcludesSameName(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "signer")
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(blocked, "signer")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())

	unlock, err = l.Lock(ctx, "signer")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestLockerIndependentNames(t *testing.T) {
	l := NewLocker()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, unlockA())
	require.NoError(t, unlockB())
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, unlock())
	require.NoError(t, unlock())

	// The second unlock must not have freed a slot someone else holds
	unlock2, err := l.Lock(ctx, "x")
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(blocked, "x")
	assert.Error(t, err)
	require.NoError(t, unlock2())
}
