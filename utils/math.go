// utils/math.go
package utils

import "github.com/shopspring/decimal"

// RoundDownToIncrement floors value to a whole multiple of increment.
// A non-positive increment returns value unchanged.
func RoundDownToIncrement(value, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return value
	}
	return value.Div(increment).Floor().Mul(increment)
}

// MinPositive returns the smallest of the positive values, or zero if none is positive.
// Zero and negative values are treated as "no limit".
func MinPositive(values ...decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	found := false
	for _, v := range values {
		if !v.IsPositive() {
			continue
		}
		if !found || v.LessThan(out) {
			out = v
			found = true
		}
	}
	return out
}

// Share returns part/total, or zero when total is not positive.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.DivRound(total, 8)
}
