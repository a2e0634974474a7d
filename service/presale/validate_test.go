package presale

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestValidator() *Validator {
	// 100..10000 tokens at 0.0001 SOL each, 0.5% slippage
	return NewValidator(dec("100"), dec("10000"), dec("0.0001"), dec("0.005"))
}

func TestValidator_Quote(t *testing.T) {
	v := newTestValidator()

	assert.True(t, dec("0.5").Equal(v.Quote(dec("5000"))))
	assert.True(t, dec("0.01").Equal(v.Quote(dec("100"))))
	assert.True(t, dec("1").Equal(v.Quote(dec("10000"))))
}

func TestValidator_Validate_WithinBounds(t *testing.T) {
	v := newTestValidator()

	err := v.Validate(dec("5000"), dec("0.5"))
	assert.NoError(t, err)

	// Inclusive bounds: exactly min and exactly max are valid.
	assert.NoError(t, v.Validate(dec("100"), dec("0.01")))
	assert.NoError(t, v.Validate(dec("10000"), dec("1")))
}

func TestValidator_Validate_OutOfBounds(t *testing.T) {
	v := newTestValidator()

	err := v.Validate(dec("50"), dec("0.005"))
	require.Error(t, err)
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.True(t, dec("50").Equal(oob.Amount))
	assert.True(t, IsValidation(err))

	err = v.Validate(dec("10001"), dec("1.0001"))
	require.ErrorAs(t, err, &oob)
}

func TestValidator_Validate_BoundsCheckedBeforePrice(t *testing.T) {
	v := newTestValidator()

	// Out-of-bounds amount fails as out-of-bounds even when the payment is
	// also wildly wrong.
	err := v.Validate(dec("50"), dec("99999"))
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
}

func TestValidator_Validate_SlippageWithinTolerance(t *testing.T) {
	v := newTestValidator()

	// Expected payment for 5000 tokens is 0.5 SOL; 0.5% tolerance allows
	// [0.4975, 0.5025].
	assert.NoError(t, v.Validate(dec("5000"), dec("0.4975")))
	assert.NoError(t, v.Validate(dec("5000"), dec("0.5025")))
}

func TestValidator_Validate_PriceMismatch(t *testing.T) {
	v := newTestValidator()

	err := v.Validate(dec("5000"), dec("0.4974"))
	require.Error(t, err)
	var pm *PriceMismatchError
	require.ErrorAs(t, err, &pm)
	assert.True(t, dec("0.5").Equal(pm.Expected))
	assert.True(t, IsValidation(err))

	err = v.Validate(dec("5000"), dec("0.5026"))
	require.ErrorAs(t, err, &pm)

	// Zero payment is far below tolerance.
	err = v.Validate(dec("5000"), dec("0"))
	require.ErrorAs(t, err, &pm)
}

func TestValidator_Bounds(t *testing.T) {
	v := newTestValidator()
	min, max := v.Bounds()
	assert.True(t, dec("100").Equal(min))
	assert.True(t, dec("10000").Equal(max))
}
