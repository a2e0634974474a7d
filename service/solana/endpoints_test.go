package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialWith_PrimaryWins(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dialed := []string{}

	dial := func(rpcURL string) RPCClient {
		dialed = append(dialed, rpcURL)
		return &mockRPCClient{}
	}

	client, err := DialWith(context.Background(),
		[]string{"https://primary.example.com", "https://fallback.example.com"},
		dial, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "primary.example.com", client.Endpoint())
	assert.Equal(t, []string{"https://primary.example.com"}, dialed)
}

func TestDialWith_FallsBackWhenPrimaryDead(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dial := func(rpcURL string) RPCClient {
		if rpcURL == "https://primary.example.com" {
			return &mockRPCClient{blockhashErr: errors.New("connection refused")}
		}
		return &mockRPCClient{}
	}

	client, err := DialWith(context.Background(),
		[]string{"https://primary.example.com", "https://fallback.example.com"},
		dial, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "fallback.example.com", client.Endpoint())
}

func TestDialWith_AllEndpointsDead(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dial := func(rpcURL string) RPCClient {
		return &mockRPCClient{blockhashErr: errors.New("connection refused")}
	}

	_, err := DialWith(context.Background(),
		[]string{"https://a.example.com", "https://b.example.com"},
		dial, nil, logger)
	assert.Error(t, err)
}

func TestDialWith_NoEndpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := DialWith(context.Background(), nil, NewRPCClient, nil, logger)
	assert.Error(t, err)
}

func TestProbe_ReportsEveryEndpoint(t *testing.T) {
	dial := func(rpcURL string) RPCClient {
		if rpcURL == "https://primary.example.com" {
			return &mockRPCClient{blockhashErr: errors.New("connection refused")}
		}
		return &mockRPCClient{}
	}

	results := Probe(context.Background(),
		[]string{"https://primary.example.com", "https://fallback.example.com"},
		dial)
	require.Len(t, results, 2)

	assert.Equal(t, "primary.example.com", results[0].Endpoint)
	assert.False(t, results[0].Live)
	assert.Error(t, results[0].Err)

	assert.Equal(t, "fallback.example.com", results[1].Endpoint)
	assert.True(t, results[1].Live)
	assert.NoError(t, results[1].Err)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "api.mainnet-beta.solana.com", endpointLabel("https://api.mainnet-beta.solana.com"))
	// API keys embedded in the URL path never reach a metrics label.
	assert.Equal(t, "rpc.example.com", endpointLabel("https://rpc.example.com/v2/super-secret-key"))
	assert.Equal(t, "unknown", endpointLabel("not a url"))
}
