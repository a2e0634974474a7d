package main

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func generateKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a new Solana keypair",
		Description: `Generates a keypair and prints the public key and the base58-encoded
private key. Useful for provisioning a vault wallet; store the private key
in VAULT_PRIVATE_KEY.`,
		Action: func(c *cli.Context) error {
			wallet := solana.NewWallet()

			if c.Bool("json") {
				data, err := json.MarshalIndent(map[string]string{
					"public_key":  wallet.PublicKey().String(),
					"private_key": wallet.PrivateKey.String(),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Public key:  %s\n", wallet.PublicKey())
			fmt.Printf("Private key: %s\n", wallet.PrivateKey.String())
			fmt.Println("\nKeep the private key secret. Anyone holding it controls the wallet.")
			return nil
		},
	}
}
