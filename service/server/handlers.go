package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/meowzlabs/presale/service/presale"
	"github.com/shopspring/decimal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a purchase request
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handlePreparePurchase returns a handler that builds, simulates, and
// vault-signs a purchase transaction for the buyer's wallet to co-sign.
// POST /api/v1/purchases
func handlePreparePurchase(engine *presale.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req preparePurchaseRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.BuyerAddress); err != nil {
			logger.Debug("invalid buyer address", "address", req.BuyerAddress, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		buyer, err := solanago.PublicKeyFromBase58(req.BuyerAddress)
		if err != nil {
			writeError(w, "invalid buyer address", http.StatusBadRequest)
			return
		}

		tokenAmount, err := decimal.NewFromString(req.TokenAmount)
		if err != nil {
			writeError(w, "invalid token_amount", http.StatusBadRequest)
			return
		}
		paymentSOL, err := decimal.NewFromString(req.PaymentSOL)
		if err != nil {
			writeError(w, "invalid payment_sol", http.StatusBadRequest)
			return
		}

		prepared, err := engine.Prepare(r.Context(), buyer, tokenAmount, paymentSOL)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}

		encoded, err := prepared.Base64()
		if err != nil {
			logger.Error("failed to serialize prepared transaction", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("purchase prepared",
			"buyer", req.BuyerAddress,
			"token_amount", req.TokenAmount,
			"payment_sol", req.PaymentSOL,
		)

		writeJSON(w, preparePurchaseResponse{
			Transaction:       encoded,
			BuyerAddress:      prepared.Buyer.String(),
			BuyerTokenAccount: prepared.BuyerTokenAccount.String(),
			VaultTokenAccount: prepared.VaultTokenAccount.String(),
			CreateBuyerATA:    prepared.CreateBuyerATA,
			TokenAmount:       prepared.TokenAmount.String(),
			PaymentSOL:        prepared.PaymentSOL.String(),
		}, http.StatusOK)
	})
}

// handleConfirmPurchase returns a handler that polls a broadcast signature
// to a terminal state. The request blocks until the transaction finalizes,
// fails, or the poll budget runs out.
// POST /api/v1/purchases/{signature}/confirm
func handleConfirmPurchase(engine *presale.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sigStr := r.PathValue("signature")
		sig, err := solanago.SignatureFromBase58(sigStr)
		if err != nil {
			writeError(w, "invalid signature", http.StatusBadRequest)
			return
		}

		outcome, err := engine.Confirm(r.Context(), sig)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("confirmation failed", "signature", sigStr, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, confirmResponse{
			Signature:   sigStr,
			Status:      string(outcome.Status),
			Reason:      outcome.Reason,
			Polls:       outcome.Polls,
			ExplorerURL: engine.ExplorerLink(sig),
		}, http.StatusOK)
	})
}

// handleGetSale returns a handler serving the sale parameters.
// GET /api/v1/sale
func handleGetSale(engine *presale.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := engine.Sale()
		writeJSON(w, saleResponse{
			TokenMint:   info.TokenMint.String(),
			TokenSymbol: info.TokenSymbol,
			Decimals:    info.Decimals,
			UnitPrice:   info.UnitPrice.String(),
			MinPurchase: info.MinPurchase.String(),
			MaxPurchase: info.MaxPurchase.String(),
			Vault:       info.Vault.String(),
		}, http.StatusOK)
	})
}

// handleGetQuote returns a handler that prices a token amount.
// GET /api/v1/quote?amount={tokens}
func handleGetQuote(engine *presale.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amountStr := r.URL.Query().Get("amount")
		amount, err := decimal.NewFromString(amountStr)
		if err != nil || !amount.IsPositive() {
			writeError(w, "amount must be a positive number", http.StatusBadRequest)
			return
		}

		writeJSON(w, quoteResponse{
			TokenAmount: amount.String(),
			PaymentSOL:  engine.Quote(amount).String(),
		}, http.StatusOK)
	})
}

// handleGetBalances returns a handler reading a wallet's SOL and token
// balances.
// GET /api/v1/balances/{address}
func handleGetBalances(engine *presale.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		owner, err := solanago.PublicKeyFromBase58(address)
		if err != nil {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}

		balances, err := engine.Balances(r.Context(), owner)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}

		writeJSON(w, balancesResponse{
			Address: address,
			SOL:     balances.SOL.String(),
			Token:   balances.Token.String(),
		}, http.StatusOK)
	})
}

type preparePurchaseRequest struct {
	BuyerAddress string `json:"buyer_address"`
	TokenAmount  string `json:"token_amount"`
	PaymentSOL   string `json:"payment_sol"`
}

type preparePurchaseResponse struct {
	Transaction       string `json:"transaction"`
	BuyerAddress      string `json:"buyer_address"`
	BuyerTokenAccount string `json:"buyer_token_account"`
	VaultTokenAccount string `json:"vault_token_account"`
	CreateBuyerATA    bool   `json:"create_buyer_ata"`
	TokenAmount       string `json:"token_amount"`
	PaymentSOL        string `json:"payment_sol"`
}

type confirmResponse struct {
	Signature   string `json:"signature"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Polls       int    `json:"polls"`
	ExplorerURL string `json:"explorer_url"`
}

type saleResponse struct {
	TokenMint   string `json:"token_mint"`
	TokenSymbol string `json:"token_symbol"`
	Decimals    uint8  `json:"decimals"`
	UnitPrice   string `json:"unit_price_sol"`
	MinPurchase string `json:"min_purchase"`
	MaxPurchase string `json:"max_purchase"`
	Vault       string `json:"vault"`
}

type quoteResponse struct {
	TokenAmount string `json:"token_amount"`
	PaymentSOL  string `json:"payment_sol"`
}

type balancesResponse struct {
	Address string `json:"address"`
	SOL     string `json:"sol"`
	Token   string `json:"token"`
}

// writePipelineError maps pipeline errors to HTTP statuses. Validation and
// rate-limit rejections are the caller's fault; simulation rejections carry
// the mapped reason; network failures surface as bad gateway.
func writePipelineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var rateErr *presale.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())+1))
		}
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	if presale.IsValidation(err) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var simErr *presale.SimulationFailedError
	if errors.As(err, &simErr) {
		writeError(w, simErr.Reason, http.StatusUnprocessableEntity)
		return
	}
	var suspErr *presale.SuspiciousPatternError
	if errors.As(err, &suspErr) {
		writeError(w, "transaction rejected", http.StatusUnprocessableEntity)
		return
	}
	var netErr *presale.NetworkError
	if errors.As(err, &netErr) {
		logger.Error("ledger operation failed", "error", err)
		writeError(w, "upstream RPC error", http.StatusBadGateway)
		return
	}
	logger.Error("purchase pipeline error", "error", err)
	writeError(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	// Validate against Solana base58 format
	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
