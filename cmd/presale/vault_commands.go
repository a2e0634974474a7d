package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meowzlabs/presale/service/config"
	"github.com/meowzlabs/presale/service/metrics"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// newBootstrapper wires a vault bootstrapper from the service environment.
func newBootstrapper(ctx context.Context) (*vault.Bootstrapper, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	m := metrics.NewMetrics(prometheus.NewRegistry())
	ledger, err := solanasvc.Dial(ctx, cfg.RPCEndpoints, m, logger)
	if err != nil {
		return nil, fmt.Errorf("no reachable RPC endpoint: %w", err)
	}

	signer, err := vault.NewLocalSigner(cfg.VaultPrivateKey)
	if err != nil {
		return nil, err
	}

	return vault.NewBootstrapper(ledger, signer, cfg.TokenMint, cfg.TokenDecimals, logger), nil
}

func vaultStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the vault token account state",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			bootstrapper, err := newBootstrapper(ctx)
			if err != nil {
				return err
			}

			state, err := bootstrapper.Verify(ctx)
			if err != nil {
				return fmt.Errorf("failed to verify vault: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(map[string]interface{}{
					"token_account": state.Address.String(),
					"initialized":   state.Initialized,
					"balance":       state.Balance.String(),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Token account: %s\n", state.Address)
			fmt.Printf("Initialized:   %t\n", state.Initialized)
			if state.Initialized {
				fmt.Printf("Balance:       %s tokens\n", state.Balance)
			}
			return nil
		},
	}
}

func vaultInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the vault token account if it does not exist",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			bootstrapper, err := newBootstrapper(ctx)
			if err != nil {
				return err
			}

			state, err := bootstrapper.EnsureAccount(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize vault: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(map[string]interface{}{
					"token_account": state.Address.String(),
					"initialized":   state.Initialized,
					"balance":       state.Balance.String(),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Vault token account ready: %s (balance: %s)\n", state.Address, state.Balance)
			return nil
		},
	}
}
