package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior:
// a misconfigured sale must never make it to the purchase pipeline.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana RPC configuration. The first endpoint is the primary; the rest
	// are fallbacks probed in order when the primary is unreachable.
	RPCEndpoints []string

	// Token sale configuration
	TokenMint     solana.PublicKey
	TokenDecimals uint8
	TokenSymbol   string
	PricePerToken decimal.Decimal // SOL per token
	MinPurchase   decimal.Decimal // token units, inclusive
	MaxPurchase   decimal.Decimal // token units, inclusive

	// SlippageTolerance is the allowed relative deviation between the quoted
	// payment amount and tokenAmount*PricePerToken (e.g. 0.005 == 0.5%).
	SlippageTolerance decimal.Decimal

	// Vault configuration. The private key is the sale's co-signing authority;
	// it never leaves the vault package after startup.
	VaultPrivateKey solana.PrivateKey

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Confirmation polling configuration
	ConfirmMaxAttempts  int
	ConfirmPollInterval time.Duration

	// Per-address purchase rate limiting
	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	// ExplorerURL is the base URL for transaction links in receipts.
	ExplorerURL string
}

// Default public RPC fallbacks, tried after the configured primary endpoint.
var defaultFallbackEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://rpc.ankr.com/solana",
}

// Load reads configuration from environment variables (with .env fallback)
// and validates all required fields. Returns an error listing every problem
// found so operators can fix them in one pass.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// RPC endpoints: primary from env, then fallbacks
	primary := os.Getenv("SOLANA_RPC_ENDPOINT")
	if primary == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_ENDPOINT is required"))
	}
	cfg.RPCEndpoints = []string{primary}
	if extra := os.Getenv("SOLANA_RPC_FALLBACKS"); extra != "" {
		for _, ep := range strings.Split(extra, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				cfg.RPCEndpoints = append(cfg.RPCEndpoints, ep)
			}
		}
	} else {
		cfg.RPCEndpoints = append(cfg.RPCEndpoints, defaultFallbackEndpoints...)
	}

	// Token configuration
	mintStr := os.Getenv("TOKEN_MINT_ADDRESS")
	if mintStr == "" {
		errs = append(errs, fmt.Errorf("TOKEN_MINT_ADDRESS is required"))
	} else {
		mint, err := solana.PublicKeyFromBase58(mintStr)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_MINT_ADDRESS: invalid address %q: %w", mintStr, err))
		} else {
			cfg.TokenMint = mint
		}
	}

	decimals, err := parseInt("TOKEN_DECIMALS", -1)
	if err != nil {
		errs = append(errs, err)
	} else if decimals < 0 || decimals > 18 {
		errs = append(errs, fmt.Errorf("TOKEN_DECIMALS must be between 0 and 18, got %d", decimals))
	} else {
		cfg.TokenDecimals = uint8(decimals)
	}

	cfg.TokenSymbol = getEnvOrDefault("TOKEN_SYMBOL", "TOKEN")

	price, err := parseDecimal("PRICE_PER_TOKEN_SOL", "")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PricePerToken = price
	}

	minPurchase, err := parseDecimal("MIN_PURCHASE", "")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinPurchase = minPurchase
	}

	maxPurchase, err := parseDecimal("MAX_PURCHASE", "")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxPurchase = maxPurchase
	}

	slippage, err := parseDecimal("SLIPPAGE_TOLERANCE", "0.005")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SlippageTolerance = slippage
	}

	// Vault signing key
	keyStr := os.Getenv("VAULT_PRIVATE_KEY")
	if keyStr == "" {
		errs = append(errs, fmt.Errorf("VAULT_PRIVATE_KEY is required"))
	} else {
		key, err := solana.PrivateKeyFromBase58(keyStr)
		if err != nil {
			errs = append(errs, fmt.Errorf("VAULT_PRIVATE_KEY: invalid base58 key: %w", err))
		} else {
			cfg.VaultPrivateKey = key
		}
	}

	// NATS configuration (optional)
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Confirmation polling
	attempts, err := parseInt("CONFIRM_MAX_ATTEMPTS", 30)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxAttempts = attempts
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	// Rate limiting
	window, err := parseDuration("RATE_LIMIT_WINDOW", "1m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RateLimitWindow = window
	}

	maxRequests, err := parseInt("RATE_LIMIT_MAX_REQUESTS", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RateLimitMaxRequests = maxRequests
	}

	cfg.ExplorerURL = getEnvOrDefault("EXPLORER_URL", "https://solscan.io")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks cross-field constraints on the configuration.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.RPCEndpoints) == 0 || c.RPCEndpoints[0] == "" {
		errs = append(errs, fmt.Errorf("at least one RPC endpoint is required"))
	}

	if c.TokenMint.IsZero() {
		errs = append(errs, fmt.Errorf("TokenMint is required"))
	}

	if !c.PricePerToken.IsPositive() {
		errs = append(errs, fmt.Errorf("PricePerToken must be positive"))
	}

	if !c.MinPurchase.IsPositive() {
		errs = append(errs, fmt.Errorf("MinPurchase must be positive"))
	}

	if c.MaxPurchase.LessThan(c.MinPurchase) {
		errs = append(errs, fmt.Errorf("MaxPurchase (%s) cannot be less than MinPurchase (%s)",
			c.MaxPurchase, c.MinPurchase))
	}

	if c.SlippageTolerance.IsNegative() || c.SlippageTolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("SlippageTolerance must be in [0, 1), got %s", c.SlippageTolerance))
	}

	if len(c.VaultPrivateKey) == 0 {
		errs = append(errs, fmt.Errorf("VaultPrivateKey is required"))
	}

	if c.ConfirmMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ConfirmMaxAttempts must be at least 1"))
	}

	if c.ConfirmPollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 100ms"))
	}

	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RateLimitWindow must be positive"))
	}

	if c.RateLimitMaxRequests < 1 {
		errs = append(errs, fmt.Errorf("RateLimitMaxRequests must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// VaultWallet returns the vault's public address.
func (c *Config) VaultWallet() solana.PublicKey {
	return c.VaultPrivateKey.PublicKey()
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseDecimal parses a decimal from an environment variable or uses a default.
// An empty default means the variable is required.
func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", key)
	}
	result, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return result, nil
}
