package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY HELPERS - Decimal construction and settlement tolerance
// =============================================================================

// SettleEpsilon is the absolute tolerance below which a bill remainder is
// treated as fully settled. The value 0.01 absorbs floating-point noise from
// documents produced by older clients and is part of the allocation
// contract - do not change it.
var SettleEpsilon = decimal.New(1, -2)

// Dec builds a decimal from a float. Intended for literals in fixtures and
// tests; user input goes through ParseDecimal instead.
func Dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DecInt builds a decimal from an integer.
func DecInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// ParseDecimal parses user-supplied numeric input strictly. Malformed input
// is an error, never silently coerced to zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ValidationFailure{Code: "invalid_number", Message: "not a valid number: " + s}
	}
	return d, nil
}

// IsSettled reports whether a remaining amount is within the settlement
// tolerance of zero.
func IsSettled(remaining decimal.Decimal) bool {
	return remaining.LessThanOrEqual(SettleEpsilon)
}

// ClampZero floors a balance at zero.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// WithinEpsilon reports whether a and b differ by at most SettleEpsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(SettleEpsilon)
}
