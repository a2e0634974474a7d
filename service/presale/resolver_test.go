package presale

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLookup implements AccountLookup for testing.
type mockLookup struct {
	exists map[string]bool
	err    error
}

func (m *mockLookup) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.exists[account.String()], nil
}

var testMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

func TestResolver_Derive_Deterministic(t *testing.T) {
	r := NewResolver(&mockLookup{}, testMint)
	owner := solana.NewWallet().PublicKey()

	ref1, err := r.Derive(owner)
	require.NoError(t, err)
	ref2, err := r.Derive(owner)
	require.NoError(t, err)

	assert.Equal(t, ref1.Address, ref2.Address)
	assert.Equal(t, owner, ref1.Owner)
	assert.Equal(t, testMint, ref1.Mint)
	assert.False(t, ref1.Exists)

	// Matches the canonical derivation.
	expected, _, err := solana.FindAssociatedTokenAddress(owner, testMint)
	require.NoError(t, err)
	assert.Equal(t, expected, ref1.Address)
}

func TestResolver_Resolve_ExistingAccount(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(owner, testMint)
	require.NoError(t, err)

	mock := &mockLookup{exists: map[string]bool{ata.String(): true}}
	r := NewResolver(mock, testMint)

	ref, err := r.Resolve(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, ref.Exists)
	assert.Equal(t, ata, ref.Address)
}

func TestResolver_Resolve_MissingAccountIsNotAnError(t *testing.T) {
	r := NewResolver(&mockLookup{}, testMint)

	ref, err := r.Resolve(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, ref.Exists)
}

func TestResolver_Resolve_LookupFailure(t *testing.T) {
	mock := &mockLookup{err: errors.New("rpc unreachable")}
	r := NewResolver(mock, testMint)

	_, err := r.Resolve(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}
