package vault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// mockLedger implements Ledger for bootstrapper tests.
type mockLedger struct {
	exists       map[string]bool
	existsErr    error
	balance      uint64
	broadcasts   int
	broadcastErr error
	status       *solanasvc.SignatureStatus

	// existsAfterCreate flips the account to existing once Broadcast runs,
	// mimicking a successful creation.
	existsAfterCreate bool
}

func (m *mockLedger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.exists[account.String()], nil
}

func (m *mockLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{1}, nil
}

func (m *mockLedger) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if m.broadcastErr != nil {
		return solana.Signature{}, m.broadcastErr
	}
	m.broadcasts++
	if m.existsAfterCreate {
		for _, acc := range tx.Message.AccountKeys {
			m.exists[acc.String()] = true
		}
	}
	return solana.Signature{5}, nil
}

func (m *mockLedger) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanasvc.SignatureStatus, error) {
	if m.status != nil {
		return m.status, nil
	}
	return &solanasvc.SignatureStatus{Known: true, Finalized: true}, nil
}

func (m *mockLedger) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	return m.balance, nil
}

func newTestBootstrapper(t *testing.T, ledger Ledger) (*Bootstrapper, Signer) {
	t.Helper()
	signer, err := NewLocalSigner(solana.NewWallet().PrivateKey)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBootstrapper(ledger, signer, testMint, 9, logger)
	b.waitInterval = time.Millisecond
	return b, signer
}

func TestBootstrapper_EnsureAccount_AlreadyExists(t *testing.T) {
	ledger := &mockLedger{exists: map[string]bool{}, balance: 1_000_000_000_000}
	b, signer := newTestBootstrapper(t, ledger)

	ata, _, err := solana.FindAssociatedTokenAddress(signer.PublicKey(), testMint)
	require.NoError(t, err)
	ledger.exists[ata.String()] = true

	state, err := b.EnsureAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Initialized)
	assert.Equal(t, ata, state.Address)
	assert.True(t, state.Balance.Equal(state.Balance.Truncate(0)))
	assert.Equal(t, "1000", state.Balance.String())
	assert.Zero(t, ledger.broadcasts, "no creation for an existing account")
}

func TestBootstrapper_EnsureAccount_CreatesWhenMissing(t *testing.T) {
	ledger := &mockLedger{exists: map[string]bool{}, existsAfterCreate: true}
	b, _ := newTestBootstrapper(t, ledger)

	state, err := b.EnsureAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Initialized)
	assert.Equal(t, 1, ledger.broadcasts)
}

func TestBootstrapper_EnsureAccount_CreationFailsOnChain(t *testing.T) {
	ledger := &mockLedger{
		exists: map[string]bool{},
		status: &solanasvc.SignatureStatus{Known: true, Err: "InstructionError(0, Custom(0))"},
	}
	b, _ := newTestBootstrapper(t, ledger)

	_, err := b.EnsureAccount(context.Background())
	assert.Error(t, err)
}

func TestBootstrapper_EnsureAccount_BroadcastFailure(t *testing.T) {
	ledger := &mockLedger{exists: map[string]bool{}, broadcastErr: errors.New("rpc down")}
	b, _ := newTestBootstrapper(t, ledger)

	_, err := b.EnsureAccount(context.Background())
	assert.Error(t, err)
}

func TestBootstrapper_Verify_Uninitialized(t *testing.T) {
	ledger := &mockLedger{exists: map[string]bool{}}
	b, _ := newTestBootstrapper(t, ledger)

	state, err := b.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Initialized)
	assert.True(t, state.Balance.IsZero())
}

func TestLocalSigner_SignsOnlyVaultSlot(t *testing.T) {
	signer, err := NewLocalSigner(solana.NewWallet().PrivateKey)
	require.NoError(t, err)

	other := solana.NewWallet().PublicKey()

	// A transaction whose fee payer is someone else: the vault must sign
	// its own slot and leave the fee payer's empty.
	instr := solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(other, true, true),
			solana.NewAccountMeta(signer.PublicKey(), false, true),
		},
		[]byte{},
	)
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, solana.Hash{}, solana.TransactionPayer(other))
	require.NoError(t, err)

	require.NoError(t, signer.Sign(tx))

	var signed int
	for _, sig := range tx.Signatures {
		if !sig.IsZero() {
			signed++
		}
	}
	assert.Equal(t, 1, signed)
}

func TestNewLocalSigner_RejectsGarbageKey(t *testing.T) {
	_, err := NewLocalSigner(solana.PrivateKey{1, 2, 3})
	assert.Error(t, err)
}
