package presale

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	solanasvc "github.com/meowzlabs/presale/service/solana"
)

// Wallet is the connected wallet collaborator: it exposes the buyer's public
// key and co-signs-and-broadcasts a transaction. The pipeline never has
// direct access to the buyer's private signing material.
//
// Implementations should return an error wrapping ErrUserRejected when the
// user declines to sign.
type Wallet interface {
	PublicKey() solana.PublicKey
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// StatusChecker is the ledger operation the confirmation poller needs.
// *solana.Client (service/solana) satisfies it.
type StatusChecker interface {
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanasvc.SignatureStatus, error)
}

// Confirmer polls a submitted transaction's status until it finalizes,
// fails, or the retry budget runs out. Polling is the only retried
// operation in the pipeline; building and submission happen exactly once
// per user action.
type Confirmer struct {
	ledger      StatusChecker
	maxAttempts int
	interval    time.Duration
	logger      *slog.Logger

	// sleep is injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewConfirmer creates a Confirmer with a bounded poll budget.
func NewConfirmer(ledger StatusChecker, maxAttempts int, interval time.Duration, logger *slog.Logger) *Confirmer {
	return &Confirmer{
		ledger:      ledger,
		maxAttempts: maxAttempts,
		interval:    interval,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Confirm polls once per interval, up to maxAttempts times.
//
// The first poll reporting finalized yields StatusFinalized; the first poll
// reporting an on-chain error yields StatusFailed immediately; that state
// is terminal, not transient, so the remaining budget is not consumed.
// Exhausting the budget with no resolution yields StatusTimedOut. Poll
// errors are transient by assumption and consume an attempt without
// terminating the loop. The context is checked between iterations; a
// canceled context returns ctx.Err alongside a timed-out outcome.
func (c *Confirmer) Confirm(ctx context.Context, sig solana.Signature) (ConfirmationOutcome, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, err := c.ledger.GetSignatureStatus(ctx, sig)
		if err != nil {
			c.logger.WarnContext(ctx, "error polling transaction status",
				"signature", sig.String(),
				"attempt", attempt,
				"error", err,
			)
		} else if status.Known {
			if status.Err != "" {
				c.logger.WarnContext(ctx, "transaction failed on-chain",
					"signature", sig.String(),
					"attempt", attempt,
					"error", status.Err,
				)
				return ConfirmationOutcome{
					Status: StatusFailed,
					Reason: status.Err,
					Polls:  attempt,
				}, nil
			}
			if status.Finalized {
				c.logger.InfoContext(ctx, "transaction finalized",
					"signature", sig.String(),
					"polls", attempt,
				)
				return ConfirmationOutcome{
					Status: StatusFinalized,
					Polls:  attempt,
				}, nil
			}
		}

		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, c.interval); err != nil {
				return ConfirmationOutcome{Status: StatusTimedOut, Polls: attempt}, err
			}
		}
	}

	c.logger.WarnContext(ctx, "transaction confirmation timed out",
		"signature", sig.String(),
		"polls", c.maxAttempts,
	)
	return ConfirmationOutcome{Status: StatusTimedOut, Polls: c.maxAttempts}, nil
}

// submit hands the vault-signed transaction to the wallet for the buyer's
// signature and broadcast. Attempted exactly once.
func submit(ctx context.Context, wallet Wallet, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := wallet.SendTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return solana.Signature{}, &UserRejectedError{Err: err}
		}
		return solana.Signature{}, &BroadcastError{Err: err}
	}
	return sig, nil
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
