package presale

import (
	"github.com/shopspring/decimal"
)

// Validator checks purchase amounts against the configured sale bounds and
// the quoted unit price. It is a pure function of its inputs and
// configuration; no side effects, no ledger access.
//
// Tolerance policy: relative slippage. The payment amount must sit within
// expected*(1±tolerance) of tokenAmount*unitPrice, so the acceptable drift
// scales with the purchase size.
type Validator struct {
	min       decimal.Decimal
	max       decimal.Decimal
	unitPrice decimal.Decimal
	tolerance decimal.Decimal
}

// NewValidator creates a Validator with inclusive [min, max] token bounds, a
// unit price in SOL per token, and a relative slippage tolerance (0.005 ==
// 0.5%).
func NewValidator(min, max, unitPrice, tolerance decimal.Decimal) *Validator {
	return &Validator{
		min:       min,
		max:       max,
		unitPrice: unitPrice,
		tolerance: tolerance,
	}
}

// Quote returns the expected payment amount in SOL for a token amount.
func (v *Validator) Quote(tokenAmount decimal.Decimal) decimal.Decimal {
	return tokenAmount.Mul(v.unitPrice)
}

// Bounds returns the inclusive purchase bounds.
func (v *Validator) Bounds() (min, max decimal.Decimal) {
	return v.min, v.max
}

// Validate checks a requested token amount and its derived payment amount.
// Bounds are checked first: an out-of-bounds amount fails regardless of the
// payment, before any account resolution happens.
func (v *Validator) Validate(tokenAmount, paymentAmount decimal.Decimal) error {
	if tokenAmount.LessThan(v.min) || tokenAmount.GreaterThan(v.max) {
		return &OutOfBoundsError{Amount: tokenAmount, Min: v.min, Max: v.max}
	}

	expected := v.Quote(tokenAmount)
	buffer := expected.Mul(v.tolerance)
	if paymentAmount.GreaterThan(expected.Add(buffer)) || paymentAmount.LessThan(expected.Sub(buffer)) {
		return &PriceMismatchError{Expected: expected, Actual: paymentAmount, Tolerance: v.tolerance}
	}

	return nil
}
