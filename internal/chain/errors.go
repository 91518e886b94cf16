package chain

import (
	"errors"

	"loanguard/internal/domain"
)

var (
	// ErrReverted indicates a transaction failed on-chain (receipt status 0)
	// or was rejected by gas estimation.
	ErrReverted = domain.WithKind(domain.ErrorKindRevert, errors.New("transaction reverted"))

	// ErrConfirmationTimeout indicates a receipt did not appear within the
	// configured wait. The transaction may still be mined later.
	ErrConfirmationTimeout = domain.WithKind(domain.ErrorKindTransient, errors.New("transaction confirmation timed out"))
)

// IsRevertError checks if err reports an on-chain revert
func IsRevertError(err error) bool {
	return errors.Is(err, ErrReverted)
}

// IsConfirmationTimeoutError checks if err reports a confirmation timeout
func IsConfirmationTimeoutError(err error) bool {
	return errors.Is(err, ErrConfirmationTimeout)
}
