package config

import (
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "So11111111111111111111111111111111111111112"

func setRequiredEnv(t *testing.T) solana.PrivateKey {
	t.Helper()
	wallet := solana.NewWallet()
	os.Setenv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com")
	os.Setenv("TOKEN_MINT_ADDRESS", testMint)
	os.Setenv("TOKEN_DECIMALS", "9")
	os.Setenv("PRICE_PER_TOKEN_SOL", "0.0001")
	os.Setenv("MIN_PURCHASE", "100")
	os.Setenv("MAX_PURCHASE", "10000")
	os.Setenv("VAULT_PRIVATE_KEY", wallet.PrivateKey.String())
	return wallet.PrivateKey
}

func cleanupEnv() {
	vars := []string{
		"SERVER_ADDR", "LOG_LEVEL",
		"SOLANA_RPC_ENDPOINT", "SOLANA_RPC_FALLBACKS",
		"TOKEN_MINT_ADDRESS", "TOKEN_DECIMALS", "TOKEN_SYMBOL",
		"PRICE_PER_TOKEN_SOL", "MIN_PURCHASE", "MAX_PURCHASE",
		"SLIPPAGE_TOLERANCE", "VAULT_PRIVATE_KEY", "NATS_URL",
		"CONFIRM_MAX_ATTEMPTS", "CONFIRM_POLL_INTERVAL",
		"RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX_REQUESTS", "EXPLORER_URL",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	key := setRequiredEnv(t)
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, testMint, cfg.TokenMint.String())
	assert.Equal(t, uint8(9), cfg.TokenDecimals)
	assert.True(t, cfg.PricePerToken.Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, cfg.MinPurchase.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.MaxPurchase.Equal(decimal.NewFromInt(10000)))
	assert.True(t, cfg.SlippageTolerance.Equal(decimal.RequireFromString("0.005"))) // Default 0.5%
	assert.Equal(t, key.PublicKey(), cfg.VaultWallet())
	assert.Equal(t, 30, cfg.ConfirmMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.ConfirmPollInterval)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 10, cfg.RateLimitMaxRequests)

	// Primary endpoint first, then default public fallbacks
	require.GreaterOrEqual(t, len(cfg.RPCEndpoints), 2)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCEndpoints[0])
}

func TestLoad_MissingRPCEndpoint(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("SOLANA_RPC_ENDPOINT")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_ENDPOINT is required")
}

func TestLoad_MissingVaultKey(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("VAULT_PRIVATE_KEY")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VAULT_PRIVATE_KEY is required")
}

func TestLoad_InvalidVaultKey(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("VAULT_PRIVATE_KEY", "not-a-base58-key!!!")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VAULT_PRIVATE_KEY")
}

func TestLoad_InvalidMint(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("TOKEN_MINT_ADDRESS", "zzzz")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TOKEN_MINT_ADDRESS")
}

func TestLoad_BoundsInverted(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("MIN_PURCHASE", "10000")
	os.Setenv("MAX_PURCHASE", "100")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "cannot be less than MinPurchase")
}

func TestLoad_FallbackEndpoints(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SOLANA_RPC_FALLBACKS", "https://one.example.com, https://two.example.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.RPCEndpoints, 3)
	assert.Equal(t, "https://one.example.com", cfg.RPCEndpoints[1])
	assert.Equal(t, "https://two.example.com", cfg.RPCEndpoints[2])
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SLIPPAGE_TOLERANCE", "0.01")
	os.Setenv("CONFIRM_MAX_ATTEMPTS", "5")
	os.Setenv("CONFIRM_POLL_INTERVAL", "500ms")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.SlippageTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, 5, cfg.ConfirmMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmPollInterval)
}

func TestValidate_SlippageOutOfRange(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SLIPPAGE_TOLERANCE", "1.5")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SlippageTolerance")
}
