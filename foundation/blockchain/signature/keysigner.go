package signature

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner is a wallet backed by a secp256k1 private key.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewKeySigner constructs a signer for the specified private key.
func NewKeySigner(privateKey *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).String(),
	}
}

// GenerateKeySigner constructs a signer with a new random private key.
func GenerateKeySigner() (*KeySigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	return NewKeySigner(privateKey), nil
}

// HexKeySigner constructs a signer from a hex-encoded private key.
func HexKeySigner(hexKey string) (*KeySigner, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}

	return NewKeySigner(privateKey), nil
}

// LoadKeySigner constructs a signer from a private key file on disk.
func LoadKeySigner(path string) (*KeySigner, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", path, err)
	}

	return NewKeySigner(privateKey), nil
}

// Address returns the account address for this signer.
func (ks *KeySigner) Address() string {
	return ks.address
}

// Sign produces a signature for the hash.
func (ks *KeySigner) Sign(hash []byte) ([]byte, error) {
	return Sign(hash, ks.privateKey)
}

// RecoverAddress returns the address that produced the signature.
func (ks *KeySigner) RecoverAddress(hash []byte, sig []byte) (string, error) {
	return FromAddress(hash, sig)
}

// Save writes the private key to the specified file.
func (ks *KeySigner) Save(path string) error {
	return crypto.SaveECDSA(path, ks.privateKey)
}

// =============================================================================

// ECDSARecoverer recovers addresses from signatures without needing access
// to any private key. Nodes use it to verify transactions.
type ECDSARecoverer struct{}

// RecoverAddress returns the address that produced the signature.
func (ECDSARecoverer) RecoverAddress(hash []byte, sig []byte) (string, error) {
	return FromAddress(hash, sig)
}
