package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/meowzlabs/presale/client"
	"github.com/urfave/cli/v2"
)

// newAPIClient builds an HTTP client for the presale server from the global
// flags.
func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func saleInfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the sale parameters",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sale, err := newAPIClient(c).Sale(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch sale info: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(sale, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Token:         %s (%s)\n", sale.TokenSymbol, sale.TokenMint)
			fmt.Printf("Decimals:      %d\n", sale.Decimals)
			fmt.Printf("Unit price:    %s SOL\n", sale.UnitPrice)
			fmt.Printf("Min purchase:  %s tokens\n", sale.MinPurchase)
			fmt.Printf("Max purchase:  %s tokens\n", sale.MaxPurchase)
			fmt.Printf("Vault:         %s\n", sale.Vault)
			return nil
		},
	}
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:      "quote",
		Usage:     "Price a token amount in SOL",
		ArgsUsage: "TOKEN_AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("token amount is required")
			}
			amount := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			quote, err := newAPIClient(c).Quote(ctx, amount)
			if err != nil {
				return fmt.Errorf("failed to fetch quote: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(quote, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("%s tokens = %s SOL\n", quote.TokenAmount, quote.PaymentSOL)
			return nil
		},
	}
}

func balancesCommand() *cli.Command {
	return &cli.Command{
		Name:      "balances",
		Usage:     "Show SOL and sale-token balances for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			balances, err := newAPIClient(c).Balances(ctx, address)
			if err != nil {
				return fmt.Errorf("failed to fetch balances: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(balances, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Address: %s\n", balances.Address)
			fmt.Printf("SOL:     %s\n", balances.SOL)
			fmt.Printf("Token:   %s\n", balances.Token)
			return nil
		},
	}
}
