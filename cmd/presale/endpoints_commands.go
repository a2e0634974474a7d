package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meowzlabs/presale/service/config"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/urfave/cli/v2"
)

func probeEndpointsCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Check every configured RPC endpoint and report which are live",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			results := solanasvc.Probe(ctx, cfg.RPCEndpoints, solanasvc.NewRPCClient)

			if c.Bool("json") {
				out := make([]map[string]interface{}, 0, len(results))
				for _, r := range results {
					entry := map[string]interface{}{
						"endpoint":   r.Endpoint,
						"live":       r.Live,
						"latency_ms": r.Latency.Milliseconds(),
					}
					if r.Err != nil {
						entry["error"] = r.Err.Error()
					}
					out = append(out, entry)
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			for _, r := range results {
				if r.Live {
					fmt.Printf("%-40s live   (%dms)\n", r.Endpoint, r.Latency.Milliseconds())
				} else {
					fmt.Printf("%-40s dead   %v\n", r.Endpoint, r.Err)
				}
			}
			return nil
		},
	}
}
