package presale

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUserRejected is returned (possibly wrapped) by Wallet implementations
// when the user declines to sign. It is not an application fault and is
// surfaced to the caller as such.
var ErrUserRejected = errors.New("user rejected transaction")

// OutOfBoundsError reports a requested token amount outside the configured
// inclusive purchase bounds. User-correctable.
type OutOfBoundsError struct {
	Amount decimal.Decimal
	Min    decimal.Decimal
	Max    decimal.Decimal
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("invalid token amount %s: must be between %s and %s", e.Amount, e.Min, e.Max)
}

// PriceMismatchError reports a payment amount that deviates from the quoted
// price by more than the configured slippage tolerance.
type PriceMismatchError struct {
	Expected  decimal.Decimal
	Actual    decimal.Decimal
	Tolerance decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price impact too high: payment %s deviates from expected %s beyond tolerance %s",
		e.Actual, e.Expected, e.Tolerance)
}

// IsValidation reports whether err is a user-correctable validation failure.
func IsValidation(err error) bool {
	var oob *OutOfBoundsError
	var pm *PriceMismatchError
	return errors.As(err, &oob) || errors.As(err, &pm)
}

// NetworkError wraps a ledger RPC failure. Retryable by user action; the
// pipeline never retries beyond the confirmation-poll budget.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BuildError reports a failure assembling the purchase transaction. No
// partial transaction is ever returned alongside one.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("transaction build failed at %s: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SimulationFailedError reports a dry run that returned an execution error.
// Reason carries the user-facing message mapped from the execution logs.
type SimulationFailedError struct {
	Code   string
	Reason string
	Logs   []string
}

func (e *SimulationFailedError) Error() string {
	return e.Reason
}

// SuspiciousPatternError reports a deny-listed substring found in simulation
// logs, even when the dry run itself reported success.
type SuspiciousPatternError struct {
	Log string
}

func (e *SuspiciousPatternError) Error() string {
	return fmt.Sprintf("transaction validation failed: %s", e.Log)
}

// UserRejectedError reports a wallet-side cancellation.
type UserRejectedError struct {
	Err error
}

func (e *UserRejectedError) Error() string {
	return "transaction was rejected in the wallet"
}

func (e *UserRejectedError) Unwrap() error { return e.Err }

// BroadcastError reports a failure handing the signed transaction to the
// network after the wallet approved it.
type BroadcastError struct {
	Err error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("failed to broadcast transaction: %v", e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// RateLimitError reports a refusal by the per-address request tracker,
// either because the rolling window is exhausted or because a previous
// attempt for the address is still unresolved.
type RateLimitError struct {
	Address    string
	InFlight   bool
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.InFlight {
		return "a purchase for this address is already in progress"
	}
	return "rate limit exceeded, please wait before making more transactions"
}
