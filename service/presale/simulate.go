package presale

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	solanasvc "github.com/meowzlabs/presale/service/solana"
)

// SimulationRunner is the ledger operation the pre-flight check needs.
// *solana.Client (service/solana) satisfies it.
type SimulationRunner interface {
	Simulate(ctx context.Context, tx *solana.Transaction) (*solanasvc.SimulationResult, error)
}

// suspiciousPatterns is the deny-list scanned against simulation logs even
// when the dry run reports success. Defense in depth, not a replacement for
// the execution error check.
var suspiciousPatterns = []string{
	"unauthorized",
	"invalid program",
	"insufficient funds",
	"invalid account data",
	"custom program error",
}

// Simulator dry-runs assembled transactions before they are handed to the
// wallet. A clean simulation does not guarantee final success, since ledger
// state can change between simulation and submission, but any detected
// failure or suspicious pattern blocks submission outright.
type Simulator struct {
	ledger SimulationRunner
	logger *slog.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator(ledger SimulationRunner, logger *slog.Logger) *Simulator {
	return &Simulator{ledger: ledger, logger: logger}
}

// Check simulates the transaction and returns nil only when the dry run
// succeeded and no deny-listed pattern appears in its logs.
func (s *Simulator) Check(ctx context.Context, tx *solana.Transaction) error {
	result, err := s.ledger.Simulate(ctx, tx)
	if err != nil {
		return &NetworkError{Op: "transaction simulation", Err: err}
	}

	if !result.Succeeded {
		reason := reasonFromLogs(result.Logs)
		s.logger.WarnContext(ctx, "transaction simulation failed",
			"error_code", result.ErrorCode,
			"reason", reason,
			"log_count", len(result.Logs),
		)
		return &SimulationFailedError{
			Code:   result.ErrorCode,
			Reason: reason,
			Logs:   result.Logs,
		}
	}

	for _, log := range result.Logs {
		lower := strings.ToLower(log)
		for _, pattern := range suspiciousPatterns {
			if strings.Contains(lower, pattern) {
				s.logger.WarnContext(ctx, "suspicious pattern in simulation logs",
					"pattern", pattern,
					"log", log,
				)
				return &SuspiciousPatternError{Log: log}
			}
		}
	}

	s.logger.DebugContext(ctx, "transaction simulation clean", "log_count", len(result.Logs))
	return nil
}

// reasonFromLogs maps known execution log lines to user-facing messages.
func reasonFromLogs(logs []string) string {
	switch {
	case anyLogContains(logs, "insufficient funds"):
		return "Insufficient SOL balance for transaction"
	case anyLogContains(logs, "insufficient lamports"):
		return "Insufficient SOL balance for transaction fees"
	case anyLogContains(logs, "custom program error: 0x1"):
		return "Insufficient token balance in vault"
	default:
		return "Transaction simulation failed"
	}
}

func anyLogContains(logs []string, substr string) bool {
	for _, log := range logs {
		if strings.Contains(log, substr) {
			return true
		}
	}
	return false
}
