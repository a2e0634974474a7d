package presale

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/shopspring/decimal"
)

// lamportsPerSOL mirrors solana.LAMPORTS_PER_SOL as a decimal for exact
// base-unit conversion.
var lamportsPerSOL = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))

// Builder assembles purchase transactions. Instruction order is fixed:
// optional buyer account creation first, then the SOL payment, then the
// token transfer. A transfer must never reference an account created after
// it.
type Builder struct {
	mint     solana.PublicKey
	decimals uint8
	signer   vault.Signer
}

// NewBuilder creates a Builder for the sale mint. The signer is the vault's
// co-signing authority: it authorizes the token transfer out of the vault
// and signs immediately at build time, since the vault is held by the
// application rather than the end user.
func NewBuilder(mint solana.PublicKey, decimals uint8, signer vault.Signer) *Builder {
	return &Builder{
		mint:     mint,
		decimals: decimals,
		signer:   signer,
	}
}

// Build assembles the purchase transaction for one request.
//
// The payment transfer is floor(paymentSOL * lamportsPerSOL) lamports and the
// token transfer is floor(tokenAmount * 10^decimals) base units: truncation,
// never rounding, so the buyer is never charged more than quoted. The result
// carries the vault's signature; the fee payer's slot is left for the wallet.
// Any derivation or signing failure aborts with a BuildError and no partial
// transaction.
func (b *Builder) Build(
	buyerRef, vaultRef TokenAccountRef,
	tokenAmount, paymentSOL decimal.Decimal,
	feePayer solana.PublicKey,
	recentBlockhash solana.Hash,
) (*solana.Transaction, error) {
	if buyerRef.Mint != b.mint || vaultRef.Mint != b.mint {
		return nil, &BuildError{
			Stage: "account refs",
			Err:   fmt.Errorf("token account refs resolved for a different mint"),
		}
	}
	if !vaultRef.Owner.Equals(b.signer.PublicKey()) {
		return nil, &BuildError{
			Stage: "recipient check",
			Err:   fmt.Errorf("vault ref owner %s is not the configured vault %s", vaultRef.Owner, b.signer.PublicKey()),
		}
	}

	lamports := paymentSOL.Mul(lamportsPerSOL).Truncate(0)
	if !lamports.IsPositive() {
		return nil, &BuildError{
			Stage: "payment amount",
			Err:   fmt.Errorf("payment of %s SOL truncates to zero lamports", paymentSOL),
		}
	}
	baseUnits := tokenAmount.Shift(int32(b.decimals)).Truncate(0)
	if !baseUnits.IsPositive() {
		return nil, &BuildError{
			Stage: "token amount",
			Err:   fmt.Errorf("token amount %s truncates to zero base units", tokenAmount),
		}
	}

	instructions := make([]solana.Instruction, 0, 3)

	// Buyer account creation must precede the token transfer that credits it.
	if !buyerRef.Exists {
		createIx, err := associatedtokenaccount.NewCreateInstruction(
			feePayer,       // funding account
			buyerRef.Owner, // wallet the ATA belongs to
			b.mint,
		).ValidateAndBuild()
		if err != nil {
			return nil, &BuildError{Stage: "create account instruction", Err: err}
		}
		instructions = append(instructions, createIx)
	}

	payIx, err := system.NewTransferInstruction(
		uint64(lamports.IntPart()),
		feePayer,
		vaultRef.Owner,
	).ValidateAndBuild()
	if err != nil {
		return nil, &BuildError{Stage: "payment instruction", Err: err}
	}
	instructions = append(instructions, payIx)

	tokenIx, err := token.NewTransferInstruction(
		uint64(baseUnits.IntPart()),
		vaultRef.Address,
		buyerRef.Address,
		vaultRef.Owner,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return nil, &BuildError{Stage: "token transfer instruction", Err: err}
	}
	instructions = append(instructions, tokenIx)

	tx, err := solana.NewTransaction(
		instructions,
		recentBlockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, &BuildError{Stage: "transaction assembly", Err: err}
	}

	if err := b.signer.Sign(tx); err != nil {
		return nil, &BuildError{Stage: "vault co-signature", Err: err}
	}

	return tx, nil
}
