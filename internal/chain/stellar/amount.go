package stellar

import (
	"fmt"

	"github.com/stellar/go/amount"
)

// All quantities cross the decimal/base-unit boundary through this pair and
// nowhere else, so a value is scaled exactly once in each direction.
// 1 unit = 10,000,000 base units, the same scale Stellar uses for stroops,
// which lets the SDK's amount codec do the arithmetic.

// ToBaseUnits converts a decimal amount string ("1.25") to base units.
func ToBaseUnits(decimal string) (int64, error) {
	v, err := amount.ParseInt64(decimal)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", decimal, err)
	}
	return v, nil
}

// FromBaseUnits renders base units as a decimal amount string.
func FromBaseUnits(base int64) string {
	return amount.StringFromInt64(base)
}
