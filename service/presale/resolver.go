package presale

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AccountLookup is the single ledger operation the resolver needs.
// *solana.Client (service/solana) satisfies it.
type AccountLookup interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// Resolver derives associated token account addresses for the sale mint and
// checks whether they exist on-chain.
type Resolver struct {
	ledger AccountLookup
	mint   solana.PublicKey
}

// NewResolver creates a resolver for the given sale mint.
func NewResolver(ledger AccountLookup, mint solana.PublicKey) *Resolver {
	return &Resolver{ledger: ledger, mint: mint}
}

// Derive computes the owner's associated token account address. The
// derivation is a pure function of mint, owner, and the token program
// identifiers, so no ledger access happens here.
func (r *Resolver) Derive(owner solana.PublicKey) (TokenAccountRef, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, r.mint)
	if err != nil {
		return TokenAccountRef{}, &BuildError{
			Stage: "derive associated token address",
			Err:   fmt.Errorf("owner %s mint %s: %w", owner, r.mint, err),
		}
	}
	return TokenAccountRef{
		Owner:   owner,
		Mint:    r.mint,
		Address: addr,
	}, nil
}

// Resolve derives the owner's associated token account and checks its
// existence. "Account not found" is not an error; it simply means the
// account must be created as part of the purchase; any other lookup failure
// is mapped to a NetworkError.
func (r *Resolver) Resolve(ctx context.Context, owner solana.PublicKey) (TokenAccountRef, error) {
	ref, err := r.Derive(owner)
	if err != nil {
		return TokenAccountRef{}, err
	}

	exists, err := r.ledger.AccountExists(ctx, ref.Address)
	if err != nil {
		return TokenAccountRef{}, &NetworkError{Op: "account lookup", Err: err}
	}
	ref.Exists = exists
	return ref, nil
}
