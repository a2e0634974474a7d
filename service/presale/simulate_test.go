package presale

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSimRunner implements SimulationRunner for testing.
type mockSimRunner struct {
	result *solanasvc.SimulationResult
	err    error
}

func (m *mockSimRunner) Simulate(ctx context.Context, tx *solana.Transaction) (*solanasvc.SimulationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimulator_Check_CleanRun(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: true,
			Logs:      []string{"Program 11111111111111111111111111111111 invoke [1]", "Program log: success"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	assert.NoError(t, err)
}

func TestSimulator_Check_RPCError(t *testing.T) {
	s := NewSimulator(&mockSimRunner{err: errors.New("connection refused")}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestSimulator_Check_InsufficientFunds(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: false,
			ErrorCode: "InstructionError",
			Logs:      []string{"Transfer: insufficient funds"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	var simErr *SimulationFailedError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "Insufficient SOL balance for transaction", simErr.Reason)
}

func TestSimulator_Check_InsufficientLamportsForFees(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: false,
			Logs:      []string{"Transaction results in an account with insufficient lamports for rent"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	var simErr *SimulationFailedError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "Insufficient SOL balance for transaction fees", simErr.Reason)
}

func TestSimulator_Check_VaultOutOfTokens(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: false,
			Logs:      []string{"Program TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA failed: custom program error: 0x1"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	var simErr *SimulationFailedError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "Insufficient token balance in vault", simErr.Reason)
}

func TestSimulator_Check_UnknownFailureGetsGenericReason(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: false,
			Logs:      []string{"Program log: something odd"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	var simErr *SimulationFailedError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "Transaction simulation failed", simErr.Reason)
}

func TestSimulator_Check_SuspiciousPatternOnSuccessfulRun(t *testing.T) {
	// The dry run reports success but a deny-listed pattern appears in the
	// logs; the transaction must still be blocked.
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: true,
			Logs:      []string{"Program log: Unauthorized access attempt"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	require.Error(t, err)
	var suspErr *SuspiciousPatternError
	assert.ErrorAs(t, err, &suspErr)
}

func TestSimulator_Check_PatternMatchIsCaseInsensitive(t *testing.T) {
	s := NewSimulator(&mockSimRunner{
		result: &solanasvc.SimulationResult{
			Succeeded: true,
			Logs:      []string{"Program log: INVALID PROGRAM id"},
		},
	}, discardLogger())

	err := s.Check(context.Background(), &solana.Transaction{})
	var suspErr *SuspiciousPatternError
	assert.ErrorAs(t, err, &suspErr)
}
