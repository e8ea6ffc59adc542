package checkout

import (
	"github.com/shopspring/decimal"
)

// SplitTolerance absorbs paise-level rounding when reconciling a mixed
// cash+UPI payment against the invoice total.
var SplitTolerance = decimal.NewFromFloat(0.01)

// CounterpartAmount computes the auto-filled half of a split payment: when
// the cashier edits one amount, the other becomes total minus the edited
// value, floored at zero and rounded to two places.
func CounterpartAmount(total, edited decimal.Decimal) decimal.Decimal {
	rest := total.Sub(edited)
	if rest.IsNegative() {
		rest = decimal.Zero
	}
	return rest.Round(2)
}

// ValidateSplit checks a mixed payment: both amounts must be entered and
// positive, and their sum must reconcile with the total within tolerance.
func ValidateSplit(total, cash, upi decimal.Decimal) error {
	if !cash.IsPositive() || !upi.IsPositive() {
		return ErrSplitIncomplete
	}
	diff := cash.Add(upi).Sub(total).Abs()
	if diff.GreaterThan(SplitTolerance) {
		return ErrSplitMismatch
	}
	return nil
}
