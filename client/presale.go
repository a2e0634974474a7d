package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Sale describes the sale parameters served by the presale service.
type Sale struct {
	TokenMint   string `json:"token_mint"`
	TokenSymbol string `json:"token_symbol"`
	Decimals    uint8  `json:"decimals"`
	UnitPrice   string `json:"unit_price_sol"`
	MinPurchase string `json:"min_purchase"`
	MaxPurchase string `json:"max_purchase"`
	Vault       string `json:"vault"`
}

// PreparedPurchase is a vault-signed purchase transaction awaiting the
// buyer's signature, serialized as base64.
type PreparedPurchase struct {
	Transaction       string `json:"transaction"`
	BuyerAddress      string `json:"buyer_address"`
	BuyerTokenAccount string `json:"buyer_token_account"`
	VaultTokenAccount string `json:"vault_token_account"`
	CreateBuyerATA    bool   `json:"create_buyer_ata"`
	TokenAmount       string `json:"token_amount"`
	PaymentSOL        string `json:"payment_sol"`
}

// Confirmation is the terminal state of a submitted purchase.
type Confirmation struct {
	Signature   string `json:"signature"`
	Status      string `json:"status"` // finalized, failed, timed_out
	Reason      string `json:"reason,omitempty"`
	Polls       int    `json:"polls"`
	ExplorerURL string `json:"explorer_url"`
}

// Quote is the SOL cost of a token amount at the configured unit price.
type Quote struct {
	TokenAmount string `json:"token_amount"`
	PaymentSOL  string `json:"payment_sol"`
}

// Balances is a wallet's SOL and sale-token holdings.
type Balances struct {
	Address string `json:"address"`
	SOL     string `json:"sol"`
	Token   string `json:"token"`
}

// Client is the HTTP client for the presale service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new presale service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Confirmation requests block while the server polls, so the
		// default timeout must outlast the server's poll budget.
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Sale retrieves the sale parameters.
func (c *Client) Sale(ctx context.Context) (*Sale, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/sale", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var sale Sale
	if err := json.NewDecoder(resp.Body).Decode(&sale); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &sale, nil
}

// Quote prices a token amount without preparing a transaction.
func (c *Client) Quote(ctx context.Context, tokenAmount string) (*Quote, error) {
	u := fmt.Sprintf("%s/api/v1/quote?amount=%s", c.baseURL, url.QueryEscape(tokenAmount))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &quote, nil
}

// PreparePurchase asks the server to build, simulate, and vault-sign a
// purchase transaction. The caller co-signs and broadcasts the returned
// transaction, then calls ConfirmPurchase with the resulting signature.
func (c *Client) PreparePurchase(ctx context.Context, buyerAddress, tokenAmount, paymentSOL string) (*PreparedPurchase, error) {
	reqBody := map[string]interface{}{
		"buyer_address": buyerAddress,
		"token_amount":  tokenAmount,
		"payment_sol":   paymentSOL,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/purchases", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var prepared PreparedPurchase
	if err := json.NewDecoder(resp.Body).Decode(&prepared); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("purchase prepared", "buyer", buyerAddress, "token_amount", tokenAmount)
	return &prepared, nil
}

// ConfirmPurchase polls a broadcast signature to a terminal state. Blocks
// until the server's poll budget resolves or runs out.
func (c *Client) ConfirmPurchase(ctx context.Context, signature string) (*Confirmation, error) {
	u := fmt.Sprintf("%s/api/v1/purchases/%s/confirm", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "POST", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var confirmation Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("purchase confirmed", "signature", signature, "status", confirmation.Status)
	return &confirmation, nil
}

// Balances retrieves a wallet's SOL and sale-token balances.
func (c *Client) Balances(ctx context.Context, address string) (*Balances, error) {
	u := fmt.Sprintf("%s/api/v1/balances/%s", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var balances Balances
	if err := json.NewDecoder(resp.Body).Decode(&balances); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &balances, nil
}

// Health checks whether the service is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Version retrieves the server's build version.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/version", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseErrorResponse(resp)
	}

	var versionResp struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&versionResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return versionResp.Version, nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
