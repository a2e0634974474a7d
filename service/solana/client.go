package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meowzlabs/presale/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations the purchase
// pipeline needs. This allows us to mock the RPC layer in tests without
// hitting real Solana nodes.
type RPCClient interface {
	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SimulateTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts *rpc.SimulateTransactionOpts,
	) (*rpc.SimulateTransactionResponse, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		sigs ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)
}

// Client wraps the RPC client with the domain-level ledger operations the
// pipeline consumes. It records per-call metrics and structured logs.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (rpc host or "mainnet"/"devnet")
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// Endpoint returns the endpoint identifier this client reports metrics under.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// record wraps an RPC call with duration and status metrics.
func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// AccountExists reports whether the given account exists on-chain.
// "Account not found" is a soft failure and yields (false, nil); every other
// failure is surfaced so callers can map it to a network error.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		c.record("GetAccountInfo", start, nil)
		return false, nil
	}
	c.record("GetAccountInfo", start, err)
	if err != nil {
		c.logger.WarnContext(ctx, "account lookup failed",
			"account", account.String(),
			"error", err,
		)
		return false, fmt.Errorf("get account info: %w", err)
	}
	return out != nil && out.Value != nil, nil
}

// SOLBalance returns the account's balance in lamports.
func (c *Client) SOLBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	c.record("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

// TokenBalance returns the raw base-unit balance of a token account.
// A missing token account yields zero, matching how the sale UI treats a
// buyer who has never held the token.
func (c *Client) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if errors.Is(err, rpc.ErrNotFound) {
		c.record("GetTokenAccountBalance", start, nil)
		return 0, nil
	}
	c.record("GetTokenAccountBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("get token account balance: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}
	var amount uint64
	if _, err := fmt.Sscanf(out.Value.Amount, "%d", &amount); err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// LatestBlockhash fetches the checkpoint reference a fresh transaction must
// cite. Confirmed commitment matches what the browser client used.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	c.record("GetLatestBlockhash", start, err)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SimulationResult is the outcome of a transaction dry run.
type SimulationResult struct {
	Succeeded bool
	Logs      []string
	// ErrorCode is the rendered RPC execution error, empty when the dry run
	// reported success.
	ErrorCode string
}

// Simulate dry-runs the transaction against current ledger state without
// committing it.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	start := time.Now()
	out, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentConfirmed,
	})
	c.record("SimulateTransaction", start, err)
	if err != nil {
		return nil, fmt.Errorf("simulate transaction: %w", err)
	}

	result := &SimulationResult{
		Succeeded: out.Value.Err == nil,
		Logs:      out.Value.Logs,
	}
	if out.Value.Err != nil {
		result.ErrorCode = fmt.Sprintf("%v", out.Value.Err)
	}

	c.logger.DebugContext(ctx, "transaction simulated",
		"succeeded", result.Succeeded,
		"log_count", len(result.Logs),
		"error_code", result.ErrorCode,
	)

	return result, nil
}

// Broadcast sends a fully-signed transaction to the network. Used by the
// vault bootstrapper and CLI flows; end-user purchases are broadcast by the
// wallet, never by the service.
func (c *Client) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.record("SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	// Known is false when the network has not yet observed the signature.
	Known     bool
	Finalized bool
	// Err is the rendered on-chain error, empty for a healthy transaction.
	Err string
}

// GetSignatureStatus polls the confirmation status of a signature once.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	c.record("GetSignatureStatuses", start, err)
	if err != nil {
		return nil, fmt.Errorf("get signature status: %w", err)
	}

	if len(out.Value) == 0 || out.Value[0] == nil {
		return &SignatureStatus{Known: false}, nil
	}

	st := out.Value[0]
	status := &SignatureStatus{
		Known:     true,
		Finalized: st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
	}
	if st.Err != nil {
		status.Err = fmt.Sprintf("%v", st.Err)
	}
	return status, nil
}
