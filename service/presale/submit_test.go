package presale

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStatusChecker implements StatusChecker, returning scripted results in
// order. Once the script runs out it repeats the last entry.
type mockStatusChecker struct {
	script []pollResult
	calls  int
}

type pollResult struct {
	status *solanasvc.SignatureStatus
	err    error
}

func (m *mockStatusChecker) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanasvc.SignatureStatus, error) {
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++
	r := m.script[i]
	return r.status, r.err
}

// newFastConfirmer returns a Confirmer whose sleeps are no-ops.
func newFastConfirmer(ledger StatusChecker, maxAttempts int) *Confirmer {
	c := NewConfirmer(ledger, maxAttempts, time.Millisecond, discardLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

var testSig = solana.Signature{1, 2, 3}

func TestConfirmer_Confirm_FinalizedOnFirstPoll(t *testing.T) {
	mock := &mockStatusChecker{script: []pollResult{
		{status: &solanasvc.SignatureStatus{Known: true, Finalized: true}},
	}}
	c := newFastConfirmer(mock, 30)

	outcome, err := c.Confirm(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	assert.Equal(t, 1, outcome.Polls)
}

func TestConfirmer_Confirm_FinalizedAfterPending(t *testing.T) {
	pending := &solanasvc.SignatureStatus{Known: true}
	mock := &mockStatusChecker{script: []pollResult{
		{status: pending},
		{status: pending},
		{status: &solanasvc.SignatureStatus{Known: true, Finalized: true}},
	}}
	c := newFastConfirmer(mock, 30)

	outcome, err := c.Confirm(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	assert.Equal(t, 3, outcome.Polls)
}

func TestConfirmer_Confirm_OnChainFailureIsTerminal(t *testing.T) {
	// An execution error ends polling immediately; the remaining budget is
	// not consumed.
	mock := &mockStatusChecker{script: []pollResult{
		{status: &solanasvc.SignatureStatus{Known: true}},
		{status: &solanasvc.SignatureStatus{Known: true, Err: "InstructionError(1, Custom(1))"}},
	}}
	c := newFastConfirmer(mock, 30)

	outcome, err := c.Confirm(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, "InstructionError(1, Custom(1))", outcome.Reason)
	assert.Equal(t, 2, outcome.Polls)
	assert.Equal(t, 2, mock.calls)
}

func TestConfirmer_Confirm_TimesOutAtBudget(t *testing.T) {
	mock := &mockStatusChecker{script: []pollResult{
		{status: &solanasvc.SignatureStatus{Known: false}},
	}}
	c := newFastConfirmer(mock, 5)

	outcome, err := c.Confirm(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, outcome.Status)
	assert.Equal(t, 5, outcome.Polls)
	assert.Equal(t, 5, mock.calls)
}

func TestConfirmer_Confirm_PollErrorsConsumeAttempts(t *testing.T) {
	// Transient poll errors don't terminate the loop, but they do count.
	mock := &mockStatusChecker{script: []pollResult{
		{err: errors.New("rpc timeout")},
		{err: errors.New("rpc timeout")},
		{status: &solanasvc.SignatureStatus{Known: true, Finalized: true}},
	}}
	c := newFastConfirmer(mock, 30)

	outcome, err := c.Confirm(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	assert.Equal(t, 3, outcome.Polls)
}

func TestConfirmer_Confirm_ContextCancellation(t *testing.T) {
	mock := &mockStatusChecker{script: []pollResult{
		{status: &solanasvc.SignatureStatus{Known: false}},
	}}
	c := NewConfirmer(mock, 30, time.Minute, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := c.Confirm(ctx, testSig)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusTimedOut, outcome.Status)
}

// mockWallet implements Wallet for testing.
type mockWallet struct {
	key solana.PublicKey
	sig solana.Signature
	err error
}

func (m *mockWallet) PublicKey() solana.PublicKey { return m.key }

func (m *mockWallet) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if m.err != nil {
		return solana.Signature{}, m.err
	}
	return m.sig, nil
}

func TestSubmit_Success(t *testing.T) {
	w := &mockWallet{sig: testSig}
	sig, err := submit(context.Background(), w, &solana.Transaction{})
	require.NoError(t, err)
	assert.Equal(t, testSig, sig)
}

func TestSubmit_UserRejection(t *testing.T) {
	w := &mockWallet{err: fmt.Errorf("wallet: %w", ErrUserRejected)}
	_, err := submit(context.Background(), w, &solana.Transaction{})
	require.Error(t, err)
	var rejErr *UserRejectedError
	assert.ErrorAs(t, err, &rejErr)
}

func TestSubmit_BroadcastFailure(t *testing.T) {
	w := &mockWallet{err: errors.New("blockhash not found")}
	_, err := submit(context.Background(), w, &solana.Transaction{})
	require.Error(t, err)
	var bErr *BroadcastError
	assert.ErrorAs(t, err, &bErr)
}
