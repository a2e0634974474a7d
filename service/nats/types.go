package nats

import (
	"time"
)

// Purchase event types published over the lifetime of one attempt.
const (
	EventSubmitted = "submitted"
	EventFinalized = "finalized"
	EventFailed    = "failed"
	EventTimedOut  = "timed_out"
)

// PurchaseEvent represents a purchase lifecycle event published to NATS.
// This is published to the subject "purchases.{buyer_address}" in JetStream.
type PurchaseEvent struct {
	// Event type: submitted, finalized, failed, or timed_out.
	Type string `json:"type"`

	// Transaction identifiers
	Signature string `json:"signature"`

	// Purchase details
	BuyerAddress string `json:"buyer_address"`
	TokenAmount  string `json:"token_amount"`
	PaymentSOL   string `json:"payment_sol"`
	TokenMint    string `json:"token_mint"`

	// Reason carries the on-chain error for failed events.
	Reason string `json:"reason,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
