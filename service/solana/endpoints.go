package solana

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meowzlabs/presale/service/metrics"
)

// probeTimeout bounds each liveness check so one dead endpoint cannot stall
// startup for the whole list.
const probeTimeout = 5 * time.Second

// DialFunc constructs an RPCClient for an endpoint URL. Tests substitute it
// to avoid dialing real nodes.
type DialFunc func(rpcURL string) RPCClient

// Dial probes the configured endpoints in order and returns a Client bound to
// the first one that answers a getLatestBlockhash request. The primary
// endpoint comes first in the list, so it wins whenever it is reachable.
func Dial(ctx context.Context, endpoints []string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	return DialWith(ctx, endpoints, NewRPCClient, m, logger)
}

// DialWith is Dial with an injectable RPC client constructor.
func DialWith(ctx context.Context, endpoints []string, dial DialFunc, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}

	for i, ep := range endpoints {
		label := endpointLabel(ep)
		rpcClient := dial(ep)

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := rpcClient.GetLatestBlockhash(probeCtx, rpc.CommitmentConfirmed)
		cancel()

		if err != nil {
			logger.WarnContext(ctx, "RPC endpoint failed probe, trying next",
				"endpoint", label,
				"position", i,
				"error", err,
			)
			if m != nil {
				m.RecordEndpointProbe(label, "error")
			}
			continue
		}

		if m != nil {
			m.RecordEndpointProbe(label, "success")
		}
		if i > 0 {
			logger.InfoContext(ctx, "using fallback RPC endpoint",
				"endpoint", label,
				"position", i,
			)
		} else {
			logger.InfoContext(ctx, "using primary RPC endpoint", "endpoint", label)
		}

		return NewClient(rpcClient, label, m, logger), nil
	}

	return nil, fmt.Errorf("no working RPC endpoint found among %d candidates", len(endpoints))
}

// ProbeResult reports the liveness of a single endpoint.
type ProbeResult struct {
	Endpoint string
	Live     bool
	Latency  time.Duration
	Err      error
}

// Probe checks every configured endpoint and reports each result. Unlike
// Dial it does not stop at the first live endpoint, so it can be used to
// audit the whole failover list.
func Probe(ctx context.Context, endpoints []string, dial DialFunc) []ProbeResult {
	results := make([]ProbeResult, 0, len(endpoints))
	for _, ep := range endpoints {
		rpcClient := dial(ep)

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		start := time.Now()
		_, err := rpcClient.GetLatestBlockhash(probeCtx, rpc.CommitmentConfirmed)
		cancel()

		results = append(results, ProbeResult{
			Endpoint: endpointLabel(ep),
			Live:     err == nil,
			Latency:  time.Since(start),
			Err:      err,
		})
	}
	return results
}

// endpointLabel reduces an endpoint URL to its host for metrics and logs,
// keeping API keys embedded in URLs out of label values.
func endpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
