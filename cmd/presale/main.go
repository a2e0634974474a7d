package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "presale",
		Usage: "Solana token presale service CLI",
		Description: `A command-line tool for operating and debugging the presale service.

Use this CLI to inspect the sale, prepare and confirm purchases, manage the
vault token account, and stream purchase lifecycle events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Sale inspection commands (HTTP API)
			{
				Name:  "sale",
				Usage: "Sale inspection commands",
				Subcommands: []*cli.Command{
					saleInfoCommand(),
					quoteCommand(),
					balancesCommand(),
				},
			},
			// Purchase commands
			{
				Name:  "purchase",
				Usage: "Purchase commands",
				Subcommands: []*cli.Command{
					preparePurchaseCommand(),
					confirmPurchaseCommand(),
					buyCommand(),
				},
			},
			// Vault management commands
			{
				Name:  "vault",
				Usage: "Vault token account management commands",
				Subcommands: []*cli.Command{
					vaultStatusCommand(),
					vaultInitCommand(),
				},
			},
			// RPC endpoint commands
			{
				Name:  "endpoints",
				Usage: "RPC endpoint commands",
				Subcommands: []*cli.Command{
					probeEndpointsCommand(),
				},
			},
			// NATS event streaming commands
			{
				Name:  "events",
				Usage: "Purchase event streaming commands",
				Subcommands: []*cli.Command{
					tailEventsCommand(),
					awaitEventCommand(),
				},
			},
			// Keypair utilities
			{
				Name:  "keys",
				Usage: "Keypair utility commands",
				Subcommands: []*cli.Command{
					generateKeyCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Presale server URL",
				EnvVars: []string{"PRESALE_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
