package presale

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// PurchaseRequest captures one purchase attempt as entered by the buyer.
// It is immutable once handed to the builder: the derived payment amount is
// computed exactly once, at submission time, never recomputed from stale
// state later in the flow.
type PurchaseRequest struct {
	RequestedTokenAmount decimal.Decimal
	DerivedPaymentAmount decimal.Decimal // SOL
	Buyer                solana.PublicKey
}

// TokenAccountRef is a resolved associated token account for one owner.
// Derivation is deterministic; only Exists requires a ledger lookup.
type TokenAccountRef struct {
	Owner   solana.PublicKey
	Mint    solana.PublicKey
	Address solana.PublicKey
	Exists  bool
}

// ConfirmationStatus is the terminal state of one submission.
type ConfirmationStatus string

const (
	StatusFinalized ConfirmationStatus = "finalized"
	StatusFailed    ConfirmationStatus = "failed"
	StatusTimedOut  ConfirmationStatus = "timed_out"
)

// ConfirmationOutcome is the result of polling a submitted transaction.
// TimedOut is ambiguous: funds may or may not have moved, and the caller is
// told to check externally rather than assume failure.
type ConfirmationOutcome struct {
	Status ConfirmationStatus
	// Reason carries the on-chain error for StatusFailed.
	Reason string
	// Polls is how many status checks this submission consumed.
	Polls int
}

// Receipt summarizes a submitted purchase for the buyer.
type Receipt struct {
	Signature   solana.Signature
	Buyer       solana.PublicKey
	TokenAmount decimal.Decimal
	PaymentSOL  decimal.Decimal
	Outcome     ConfirmationOutcome
	ExplorerURL string
	Timestamp   time.Time
}

// Balances is a point-in-time read of a wallet's SOL and sale-token holdings.
type Balances struct {
	SOL   decimal.Decimal
	Token decimal.Decimal
}
