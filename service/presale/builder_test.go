package presale

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) vault.Signer {
	t.Helper()
	signer, err := vault.NewLocalSigner(solana.NewWallet().PrivateKey)
	require.NoError(t, err)
	return signer
}

// testRefs derives buyer and vault token account refs for the test mint.
func testRefs(t *testing.T, buyer solana.PublicKey, signer vault.Signer, buyerExists bool) (TokenAccountRef, TokenAccountRef) {
	t.Helper()
	buyerATA, _, err := solana.FindAssociatedTokenAddress(buyer, testMint)
	require.NoError(t, err)
	vaultATA, _, err := solana.FindAssociatedTokenAddress(signer.PublicKey(), testMint)
	require.NoError(t, err)

	buyerRef := TokenAccountRef{Owner: buyer, Mint: testMint, Address: buyerATA, Exists: buyerExists}
	vaultRef := TokenAccountRef{Owner: signer.PublicKey(), Mint: testMint, Address: vaultATA, Exists: true}
	return buyerRef, vaultRef
}

func TestBuilder_Build_ExistingBuyerAccount(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)

	tx, err := b.Build(buyerRef, vaultRef, dec("5000"), dec("0.5"), buyer, solana.Hash{})
	require.NoError(t, err)

	// SOL payment + token transfer, no account creation.
	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, buyer, tx.Message.AccountKeys[0], "buyer pays the fee")
}

func TestBuilder_Build_CreatesBuyerAccountFirst(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, false)

	tx, err := b.Build(buyerRef, vaultRef, dec("5000"), dec("0.5"), buyer, solana.Hash{})
	require.NoError(t, err)

	// Account creation precedes the transfers that reference it.
	require.Len(t, tx.Message.Instructions, 3)
}

func TestBuilder_Build_VaultSignaturePresent(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)

	tx, err := b.Build(buyerRef, vaultRef, dec("100"), dec("0.01"), buyer, solana.Hash{})
	require.NoError(t, err)

	// The vault co-signed at build time; the buyer's fee-payer slot is
	// still empty.
	var signed int
	for _, sig := range tx.Signatures {
		if !sig.IsZero() {
			signed++
		}
	}
	assert.Equal(t, 1, signed)
}

func TestBuilder_Build_TruncatesNotRounds(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 6, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)

	// 0.0000000019 SOL is 1.9 lamports; the transfer must carry 1, never 2.
	tx, err := b.Build(buyerRef, vaultRef, dec("100"), dec("0.0000000019"), buyer, solana.Hash{})
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 2)
}

func TestBuilder_Build_ZeroLamportsRejected(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)

	// Sub-lamport payment truncates to zero and must not build.
	_, err := b.Build(buyerRef, vaultRef, dec("100"), dec("0.0000000001"), buyer, solana.Hash{})
	require.Error(t, err)
	var buildErr *BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestBuilder_Build_WrongMintRejected(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)
	buyerRef.Mint = solana.NewWallet().PublicKey()

	_, err := b.Build(buyerRef, vaultRef, dec("100"), dec("0.01"), buyer, solana.Hash{})
	require.Error(t, err)
	var buildErr *BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestBuilder_Build_ForeignVaultRejected(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testMint, 9, signer)
	buyer := solana.NewWallet().PublicKey()
	buyerRef, vaultRef := testRefs(t, buyer, signer, true)

	// A vault ref owned by anyone but the configured signer must not build:
	// the SOL payment would go to an untrusted recipient.
	vaultRef.Owner = solana.NewWallet().PublicKey()

	_, err := b.Build(buyerRef, vaultRef, dec("100"), dec("0.01"), buyer, solana.Hash{})
	require.Error(t, err)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "recipient check", buildErr.Stage)
}
