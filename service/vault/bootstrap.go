package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of ledger operations the bootstrapper needs.
// *solana.Client (service/solana) satisfies it.
type Ledger interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanasvc.SignatureStatus, error)
	TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error)
}

// AccountState is a point-in-time view of the vault's token account.
type AccountState struct {
	Address     solana.PublicKey
	Initialized bool
	Balance     decimal.Decimal // whole tokens
}

// Bootstrapper idempotently ensures the vault's token account exists before
// any sale can proceed. It runs once per application session, on connection
// establishment, independent of any user action.
type Bootstrapper struct {
	ledger   Ledger
	signer   Signer
	mint     solana.PublicKey
	decimals uint8
	logger   *slog.Logger

	// Creation confirmation is a short bounded wait; these are fixed rather
	// than configured because bootstrap runs once at startup.
	waitAttempts int
	waitInterval time.Duration
}

// NewBootstrapper creates a Bootstrapper for the sale mint.
func NewBootstrapper(ledger Ledger, signer Signer, mint solana.PublicKey, decimals uint8, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		ledger:       ledger,
		signer:       signer,
		mint:         mint,
		decimals:     decimals,
		logger:       logger,
		waitAttempts: 15,
		waitInterval: 2 * time.Second,
	}
}

// TokenAccount returns the vault's associated token account address.
func (b *Bootstrapper) TokenAccount() (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(b.signer.PublicKey(), b.mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive vault token account: %w", err)
	}
	return ata, nil
}

// EnsureAccount checks the vault token account, creates it if absent, and
// re-verifies after creation. Safe to invoke when the account already
// exists.
func (b *Bootstrapper) EnsureAccount(ctx context.Context) (*AccountState, error) {
	ata, err := b.TokenAccount()
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "checking vault token account",
		"vault", b.signer.PublicKey().String(),
		"token_account", ata.String(),
		"mint", b.mint.String(),
	)

	exists, err := b.ledger.AccountExists(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("check vault token account: %w", err)
	}

	if !exists {
		if err := b.createAccount(ctx, ata); err != nil {
			return nil, err
		}
		// Re-verify: creation was broadcast, the account must be visible now.
		exists, err = b.ledger.AccountExists(ctx, ata)
		if err != nil {
			return nil, fmt.Errorf("re-verify vault token account: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("vault token account %s still missing after creation", ata)
		}
	}

	return b.Verify(ctx)
}

// Verify reads the vault token account state without mutating anything.
func (b *Bootstrapper) Verify(ctx context.Context) (*AccountState, error) {
	ata, err := b.TokenAccount()
	if err != nil {
		return nil, err
	}

	exists, err := b.ledger.AccountExists(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("check vault token account: %w", err)
	}

	state := &AccountState{Address: ata, Initialized: exists}
	if !exists {
		return state, nil
	}

	raw, err := b.ledger.TokenBalance(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("read vault balance: %w", err)
	}
	state.Balance = decimal.NewFromUint64(raw).Shift(-int32(b.decimals))

	b.logger.InfoContext(ctx, "vault token account verified",
		"token_account", ata.String(),
		"balance", state.Balance.String(),
	)

	return state, nil
}

// createAccount broadcasts the vault's own ATA creation, funded and signed
// by the vault itself, and waits for it to confirm.
func (b *Bootstrapper) createAccount(ctx context.Context, ata solana.PublicKey) error {
	vaultWallet := b.signer.PublicKey()
	b.logger.InfoContext(ctx, "creating vault token account",
		"token_account", ata.String(),
	)

	createIx, err := associatedtokenaccount.NewCreateInstruction(
		vaultWallet,
		vaultWallet,
		b.mint,
	).ValidateAndBuild()
	if err != nil {
		return fmt.Errorf("build vault account creation: %w", err)
	}

	blockhash, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("fetch blockhash for vault account creation: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{createIx},
		blockhash,
		solana.TransactionPayer(vaultWallet),
	)
	if err != nil {
		return fmt.Errorf("assemble vault account creation: %w", err)
	}

	// The vault is the only required signer here.
	if err := b.signer.Sign(tx); err != nil {
		return fmt.Errorf("sign vault account creation: %w", err)
	}

	sig, err := b.ledger.Broadcast(ctx, tx)
	if err != nil {
		return fmt.Errorf("broadcast vault account creation: %w", err)
	}

	b.logger.InfoContext(ctx, "vault account creation submitted", "signature", sig.String())

	return b.waitForConfirmation(ctx, sig)
}

// waitForConfirmation polls the creation signature until it lands or the
// bounded wait runs out.
func (b *Bootstrapper) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	for attempt := 1; attempt <= b.waitAttempts; attempt++ {
		status, err := b.ledger.GetSignatureStatus(ctx, sig)
		if err == nil && status.Known {
			if status.Err != "" {
				return fmt.Errorf("vault account creation failed on-chain: %s", status.Err)
			}
			if status.Finalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.waitInterval):
		}
	}
	return fmt.Errorf("vault account creation %s not confirmed after %d polls", sig, b.waitAttempts)
}
