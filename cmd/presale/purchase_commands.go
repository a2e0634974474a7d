package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/meowzlabs/presale/service/config"
	"github.com/meowzlabs/presale/service/metrics"
	natspkg "github.com/meowzlabs/presale/service/nats"
	"github.com/meowzlabs/presale/service/presale"
	solanasvc "github.com/meowzlabs/presale/service/solana"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func preparePurchaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "prepare",
		Usage:     "Build and vault-sign a purchase transaction for a buyer",
		ArgsUsage: "BUYER_ADDRESS TOKEN_AMOUNT PAYMENT_SOL",
		Description: `Asks the server to validate, build, simulate, and vault-sign a purchase
transaction. The returned base64 transaction must be co-signed by the buyer's
wallet and broadcast, then confirmed with "purchase confirm".`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 3 {
				return fmt.Errorf("buyer address, token amount, and payment are required")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			prepared, err := newAPIClient(c).PreparePurchase(ctx, c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
			if err != nil {
				return fmt.Errorf("failed to prepare purchase: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(prepared, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Buyer:               %s\n", prepared.BuyerAddress)
			fmt.Printf("Token amount:        %s\n", prepared.TokenAmount)
			fmt.Printf("Payment:             %s SOL\n", prepared.PaymentSOL)
			fmt.Printf("Buyer token account: %s (create: %t)\n", prepared.BuyerTokenAccount, prepared.CreateBuyerATA)
			fmt.Printf("Vault token account: %s\n", prepared.VaultTokenAccount)
			fmt.Printf("\nTransaction (base64, awaiting buyer signature):\n%s\n", prepared.Transaction)
			return nil
		},
	}
}

func confirmPurchaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Poll a broadcast purchase signature to a terminal state",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}
			signature := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Waiting for %s to reach a terminal state...\n", signature)
			}

			confirmation, err := newAPIClient(c).ConfirmPurchase(ctx, signature)
			if err != nil {
				return fmt.Errorf("failed to confirm purchase: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(confirmation, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Status:   %s\n", confirmation.Status)
			if confirmation.Reason != "" {
				fmt.Printf("Reason:   %s\n", confirmation.Reason)
			}
			fmt.Printf("Polls:    %d\n", confirmation.Polls)
			fmt.Printf("Explorer: %s\n", confirmation.ExplorerURL)
			return nil
		},
	}
}

// keypairWallet implements the purchase pipeline's wallet collaborator with
// a local keypair: it signs the buyer's slot and broadcasts directly.
type keypairWallet struct {
	key    solana.PrivateKey
	ledger *solanasvc.Client
}

func (w *keypairWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

func (w *keypairWallet) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	_, err := tx.PartialSign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign with buyer keypair: %w", err)
	}
	return w.ledger.Broadcast(ctx, tx)
}

func buyCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Run a complete purchase with a local buyer keypair",
		ArgsUsage: "TOKEN_AMOUNT",
		Description: `Runs the full purchase pipeline in-process: validate, build, simulate,
sign with the local buyer keypair, broadcast, and poll until the transaction
reaches a terminal state. Requires the service environment (vault key, mint,
RPC endpoints) to be configured; intended for operator smoke tests.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "keypair",
				Aliases:  []string{"k"},
				Usage:    "Path to the buyer's Solana keygen file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "payment",
				Usage: "Payment in SOL (defaults to the quoted price)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("token amount is required")
			}
			tokenAmount, err := decimal.NewFromString(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid token amount: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			key, err := solana.PrivateKeyFromSolanaKeygenFile(c.String("keypair"))
			if err != nil {
				return fmt.Errorf("failed to load buyer keypair: %w", err)
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			m := metrics.NewMetrics(prometheus.NewRegistry())
			ledger, err := solanasvc.Dial(ctx, cfg.RPCEndpoints, m, logger)
			if err != nil {
				return fmt.Errorf("no reachable RPC endpoint: %w", err)
			}

			signer, err := vault.NewLocalSigner(cfg.VaultPrivateKey)
			if err != nil {
				return err
			}

			engine := presale.NewEngine(presale.EngineParams{
				Ledger:              ledger,
				Signer:              signer,
				Publisher:           natspkg.NewMockPublisher(),
				Metrics:             m,
				Logger:              logger,
				Mint:                cfg.TokenMint,
				Decimals:            cfg.TokenDecimals,
				TokenSymbol:         cfg.TokenSymbol,
				UnitPrice:           cfg.PricePerToken,
				Min:                 cfg.MinPurchase,
				Max:                 cfg.MaxPurchase,
				Tolerance:           cfg.SlippageTolerance,
				ConfirmMaxAttempts:  cfg.ConfirmMaxAttempts,
				ConfirmPollInterval: cfg.ConfirmPollInterval,
				RateLimitWindow:     cfg.RateLimitWindow,
				RateLimitMax:        cfg.RateLimitMaxRequests,
				ExplorerURL:         cfg.ExplorerURL,
			})

			payment := engine.Quote(tokenAmount)
			if paymentFlag := c.String("payment"); paymentFlag != "" {
				payment, err = decimal.NewFromString(paymentFlag)
				if err != nil {
					return fmt.Errorf("invalid payment: %w", err)
				}
			}

			wallet := &keypairWallet{key: key, ledger: ledger}
			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Buying %s tokens for %s SOL as %s...\n",
					tokenAmount, payment, wallet.PublicKey())
			}

			receipt, err := engine.Purchase(ctx, wallet, tokenAmount, payment)
			if err != nil {
				return fmt.Errorf("purchase failed: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(receipt, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Signature: %s\n", receipt.Signature)
			fmt.Printf("Status:    %s\n", receipt.Outcome.Status)
			if receipt.Outcome.Reason != "" {
				fmt.Printf("Reason:    %s\n", receipt.Outcome.Reason)
			}
			fmt.Printf("Explorer:  %s\n", receipt.ExplorerURL)
			return nil
		},
	}
}
