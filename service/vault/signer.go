// Package vault isolates the sale vault's signing authority behind a narrow
// interface. The rest of the pipeline only ever sees a Signer; the private
// key itself never leaves this package after construction, so the signer can
// be moved behind a remote service without touching the purchase flow.
package vault

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer co-signs transactions with the vault's authority.
type Signer interface {
	// PublicKey returns the vault wallet address.
	PublicKey() solana.PublicKey

	// Sign applies the vault's signature to the transaction, leaving every
	// other required signature slot untouched.
	Sign(tx *solana.Transaction) error
}

// LocalSigner holds the vault keypair in-process.
type LocalSigner struct {
	key solana.PrivateKey
}

// NewLocalSigner wraps a private key loaded from configuration.
func NewLocalSigner(key solana.PrivateKey) (*LocalSigner, error) {
	// Length check up front: the underlying ed25519 ops panic on malformed
	// keys instead of returning errors.
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("vault private key has length %d, want %d", len(key), ed25519.PrivateKeySize)
	}
	return &LocalSigner{key: key}, nil
}

// PublicKey returns the vault wallet address.
func (s *LocalSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign partially signs the transaction with the vault key only.
func (s *LocalSigner) Sign(tx *solana.Transaction) error {
	vaultKey := s.key.PublicKey()
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(vaultKey) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("vault partial sign: %w", err)
	}
	return nil
}
