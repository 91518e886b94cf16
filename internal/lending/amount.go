package lending

import (
	"fmt"
	"math/big"
	"strings"

	"loanguard/internal/domain"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a display amount such as "100.5" into the asset's
// smallest unit. The result must be a positive integer.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, domain.WithKind(domain.ErrorKindValidation, fmt.Errorf("invalid amount %q: %w", amount, err))
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("amount %q: %w", amount, domain.ErrNonPositiveAmount)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals: %w", amount, decimals, domain.ErrInvalidAmount)
	}
	return shifted.BigInt(), nil
}

// FromWad converts an 18-decimal fixed-point integer into a decimal.
func FromWad(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -18)
}
