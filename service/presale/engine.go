package presale

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/meowzlabs/presale/service/metrics"
	natspkg "github.com/meowzlabs/presale/service/nats"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/shopspring/decimal"
)

// Ledger is the full set of ledger operations the purchase pipeline needs.
// *solana.Client (service/solana) satisfies it.
type Ledger interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	SOLBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Simulate(ctx context.Context, tx *solana.Transaction) (*solanasvc.SimulationResult, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanasvc.SignatureStatus, error)
}

// EngineParams collects everything the engine is built from.
type EngineParams struct {
	Ledger    Ledger
	Signer    vault.Signer
	Publisher natspkg.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Mint        solana.PublicKey
	Decimals    uint8
	TokenSymbol string

	UnitPrice decimal.Decimal // SOL per whole token
	Min       decimal.Decimal
	Max       decimal.Decimal
	Tolerance decimal.Decimal

	ConfirmMaxAttempts  int
	ConfirmPollInterval time.Duration
	RateLimitWindow     time.Duration
	RateLimitMax        int

	ExplorerURL string
}

// Engine runs the purchase pipeline end to end: validate, resolve, build,
// simulate, submit, confirm. Each stage gates the next; a rejection at any
// stage means nothing was broadcast.
type Engine struct {
	ledger    Ledger
	signer    vault.Signer
	validator *Validator
	resolver  *Resolver
	builder   *Builder
	simulator *Simulator
	confirmer *Confirmer
	limiter   *RateLimiter
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mint        solana.PublicKey
	decimals    uint8
	tokenSymbol string
	explorerURL string
}

// NewEngine wires the pipeline stages together.
func NewEngine(p EngineParams) *Engine {
	return &Engine{
		ledger:      p.Ledger,
		signer:      p.Signer,
		validator:   NewValidator(p.Min, p.Max, p.UnitPrice, p.Tolerance),
		resolver:    NewResolver(p.Ledger, p.Mint),
		builder:     NewBuilder(p.Mint, p.Decimals, p.Signer),
		simulator:   NewSimulator(p.Ledger, p.Logger),
		confirmer:   NewConfirmer(p.Ledger, p.ConfirmMaxAttempts, p.ConfirmPollInterval, p.Logger),
		limiter:     NewRateLimiter(p.RateLimitWindow, p.RateLimitMax),
		publisher:   p.Publisher,
		metrics:     p.Metrics,
		logger:      p.Logger,
		mint:        p.Mint,
		decimals:    p.Decimals,
		tokenSymbol: p.TokenSymbol,
		explorerURL: p.ExplorerURL,
	}
}

// SaleInfo is the static description of the sale offered to clients.
type SaleInfo struct {
	TokenMint   solana.PublicKey
	TokenSymbol string
	Decimals    uint8
	UnitPrice   decimal.Decimal
	MinPurchase decimal.Decimal
	MaxPurchase decimal.Decimal
	Vault       solana.PublicKey
}

// Sale returns the sale parameters.
func (e *Engine) Sale() SaleInfo {
	min, max := e.validator.Bounds()
	return SaleInfo{
		TokenMint:   e.mint,
		TokenSymbol: e.tokenSymbol,
		Decimals:    e.decimals,
		UnitPrice:   e.validator.Quote(decimal.NewFromInt(1)),
		MinPurchase: min,
		MaxPurchase: max,
		Vault:       e.signer.PublicKey(),
	}
}

// Quote returns the SOL cost of tokenAmount whole tokens at the configured
// unit price. It does not check bounds; callers wanting rejection use
// Validate via Prepare or Purchase.
func (e *Engine) Quote(tokenAmount decimal.Decimal) decimal.Decimal {
	return e.validator.Quote(tokenAmount)
}

// PreparedPurchase is a built, simulated, vault-signed transaction waiting
// for the buyer's signature and broadcast.
type PreparedPurchase struct {
	Transaction       *solana.Transaction
	Buyer             solana.PublicKey
	BuyerTokenAccount solana.PublicKey
	VaultTokenAccount solana.PublicKey
	CreateBuyerATA    bool
	TokenAmount       decimal.Decimal
	PaymentSOL        decimal.Decimal
}

// Base64 serializes the prepared transaction for transport to a wallet.
func (p *PreparedPurchase) Base64() (string, error) {
	return p.Transaction.ToBase64()
}

// Prepare runs the pipeline up to and including simulation and returns the
// vault-signed transaction for an external wallet to co-sign and broadcast.
// The buyer is the fee payer. Submission accounting for the buyer's rate
// limit window happens here, at the gate, not at broadcast.
func (e *Engine) Prepare(ctx context.Context, buyer solana.PublicKey, tokenAmount, paymentSOL decimal.Decimal) (*PreparedPurchase, error) {
	if err := e.limiter.Allow(buyer.String()); err != nil {
		e.metrics.RecordRateLimitHit()
		e.metrics.RecordPurchaseRejection("rate_limit")
		return nil, err
	}
	return e.assemble(ctx, buyer, tokenAmount, paymentSOL)
}

// assemble is the shared validate-resolve-build-simulate core.
func (e *Engine) assemble(ctx context.Context, buyer solana.PublicKey, tokenAmount, paymentSOL decimal.Decimal) (*PreparedPurchase, error) {
	if err := e.validator.Validate(tokenAmount, paymentSOL); err != nil {
		e.metrics.RecordPurchaseRejection("validation")
		return nil, err
	}

	buyerRef, err := e.resolver.Resolve(ctx, buyer)
	if err != nil {
		e.metrics.RecordPurchaseRejection("resolve")
		return nil, err
	}
	vaultRef, err := e.resolver.Resolve(ctx, e.signer.PublicKey())
	if err != nil {
		e.metrics.RecordPurchaseRejection("resolve")
		return nil, err
	}

	blockhash, err := e.ledger.LatestBlockhash(ctx)
	if err != nil {
		e.metrics.RecordPurchaseRejection("blockhash")
		return nil, &NetworkError{Op: "fetch blockhash", Err: err}
	}

	tx, err := e.builder.Build(buyerRef, vaultRef, tokenAmount, paymentSOL, buyer, blockhash)
	if err != nil {
		e.metrics.RecordPurchaseRejection("build")
		return nil, err
	}

	if err := e.simulator.Check(ctx, tx); err != nil {
		e.metrics.RecordPurchaseRejection("simulation")
		return nil, err
	}

	e.logger.InfoContext(ctx, "purchase transaction prepared",
		"buyer", buyer.String(),
		"token_amount", tokenAmount.String(),
		"payment_sol", paymentSOL.String(),
		"create_buyer_ata", !buyerRef.Exists,
	)

	return &PreparedPurchase{
		Transaction:       tx,
		Buyer:             buyer,
		BuyerTokenAccount: buyerRef.Address,
		VaultTokenAccount: vaultRef.Address,
		CreateBuyerATA:    !buyerRef.Exists,
		TokenAmount:       tokenAmount,
		PaymentSOL:        paymentSOL,
	}, nil
}

// Purchase runs a complete purchase through a connected wallet: prepare,
// submit, confirm. One attempt per user action; only confirmation polling
// retries. A second Purchase for the same buyer while one is in flight is
// rejected.
func (e *Engine) Purchase(ctx context.Context, wallet Wallet, tokenAmount, paymentSOL decimal.Decimal) (*Receipt, error) {
	buyer := wallet.PublicKey()
	start := time.Now()

	if err := e.limiter.Acquire(buyer.String()); err != nil {
		e.metrics.RecordRateLimitHit()
		e.metrics.RecordPurchaseRejection("rate_limit")
		return nil, err
	}
	defer e.limiter.Release(buyer.String())

	prepared, err := e.assemble(ctx, buyer, tokenAmount, paymentSOL)
	if err != nil {
		return nil, err
	}

	sig, err := submit(ctx, wallet, prepared.Transaction)
	if err != nil {
		e.metrics.RecordPurchaseRejection("submit")
		return nil, err
	}

	e.logger.InfoContext(ctx, "purchase submitted",
		"signature", sig.String(),
		"buyer", buyer.String(),
	)
	e.publishEvent(ctx, &natspkg.PurchaseEvent{
		Type:         natspkg.EventSubmitted,
		Signature:    sig.String(),
		BuyerAddress: buyer.String(),
		TokenAmount:  tokenAmount.String(),
		PaymentSOL:   paymentSOL.String(),
		TokenMint:    e.mint.String(),
	})

	outcome, err := e.confirmer.Confirm(ctx, sig)
	e.metrics.RecordConfirmationPolls(string(outcome.Status), float64(outcome.Polls))
	e.metrics.RecordPurchase(string(outcome.Status), time.Since(start).Seconds())
	e.publishEvent(ctx, &natspkg.PurchaseEvent{
		Type:         eventTypeFor(outcome.Status),
		Signature:    sig.String(),
		BuyerAddress: buyer.String(),
		TokenAmount:  tokenAmount.String(),
		PaymentSOL:   paymentSOL.String(),
		TokenMint:    e.mint.String(),
		Reason:       outcome.Reason,
	})

	if outcome.Status == StatusFinalized {
		e.refreshVaultGauge(ctx)
	}

	receipt := &Receipt{
		Signature:   sig,
		Buyer:       buyer,
		TokenAmount: tokenAmount,
		PaymentSOL:  paymentSOL,
		Outcome:     outcome,
		ExplorerURL: e.explorerURL + "/tx/" + sig.String(),
		Timestamp:   time.Now().UTC(),
	}
	return receipt, err
}

// Confirm polls an already-submitted signature to a terminal state. Used by
// the two-phase flow after an external wallet broadcasts the prepared
// transaction.
func (e *Engine) Confirm(ctx context.Context, sig solana.Signature) (ConfirmationOutcome, error) {
	outcome, err := e.confirmer.Confirm(ctx, sig)
	e.metrics.RecordConfirmationPolls(string(outcome.Status), float64(outcome.Polls))
	e.publishEvent(ctx, &natspkg.PurchaseEvent{
		Type:      eventTypeFor(outcome.Status),
		Signature: sig.String(),
		TokenMint: e.mint.String(),
		Reason:    outcome.Reason,
	})
	if outcome.Status == StatusFinalized {
		e.refreshVaultGauge(ctx)
	}
	return outcome, err
}

// Balances reads a wallet's SOL and sale-token balances. A missing token
// account reads as zero tokens, not an error.
func (e *Engine) Balances(ctx context.Context, owner solana.PublicKey) (*Balances, error) {
	lamports, err := e.ledger.SOLBalance(ctx, owner)
	if err != nil {
		return nil, &NetworkError{Op: "fetch SOL balance", Err: err}
	}

	ref, err := e.resolver.Resolve(ctx, owner)
	if err != nil {
		return nil, err
	}

	var raw uint64
	if ref.Exists {
		raw, err = e.ledger.TokenBalance(ctx, ref.Address)
		if err != nil {
			return nil, &NetworkError{Op: "fetch token balance", Err: err}
		}
	}

	return &Balances{
		SOL:   decimal.NewFromUint64(lamports).Div(lamportsPerSOL),
		Token: decimal.NewFromUint64(raw).Shift(-int32(e.decimals)),
	}, nil
}

// ExplorerLink returns the explorer URL for a signature.
func (e *Engine) ExplorerLink(sig solana.Signature) string {
	return e.explorerURL + "/tx/" + sig.String()
}

// refreshVaultGauge re-reads the vault token balance after a sale moves
// tokens out. Failures only log; the sale already succeeded.
func (e *Engine) refreshVaultGauge(ctx context.Context) {
	ref, err := e.resolver.Resolve(ctx, e.signer.PublicKey())
	if err != nil || !ref.Exists {
		return
	}
	raw, err := e.ledger.TokenBalance(ctx, ref.Address)
	if err != nil {
		e.logger.WarnContext(ctx, "error refreshing vault balance", "error", err)
		return
	}
	balance := decimal.NewFromUint64(raw).Shift(-int32(e.decimals))
	f, _ := balance.Float64()
	e.metrics.SetVaultTokenBalance(f)
}

// publishEvent publishes a purchase lifecycle event. Publish failures are
// logged and never fail the purchase itself.
func (e *Engine) publishEvent(ctx context.Context, event *natspkg.PurchaseEvent) {
	if e.publisher == nil {
		return
	}
	event.PublishedAt = time.Now().UTC()
	if err := e.publisher.PublishPurchase(ctx, event); err != nil {
		e.metrics.RecordNATSPublish("error")
		e.logger.WarnContext(ctx, "error publishing purchase event",
			"type", event.Type,
			"signature", event.Signature,
			"error", err,
		)
		return
	}
	e.metrics.RecordNATSPublish("success")
}

func eventTypeFor(status ConfirmationStatus) string {
	switch status {
	case StatusFinalized:
		return natspkg.EventFinalized
	case StatusFailed:
		return natspkg.EventFailed
	default:
		return natspkg.EventTimedOut
	}
}
