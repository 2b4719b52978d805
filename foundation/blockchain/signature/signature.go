// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignatureFormat is returned when a signature can't be decoded
// into a valid recovery id and curve values.
var ErrInvalidSignatureFormat = errors.New("invalid signature format")

// ardanID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the Ardan blockchain.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const ardanID = 29

// =============================================================================

// Signer represents the behavior of a wallet that can produce signatures
// for the hashes of transactions it creates.
type Signer interface {
	Address() string
	Sign(hash []byte) ([]byte, error)
}

// Recoverer represents the behavior required to extract the address of the
// account that produced a signature for a given hash.
type Recoverer interface {
	RecoverAddress(hash []byte, sig []byte) (string, error)
}

// =============================================================================

// Hash returns a unique string for the value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return hexutil.Encode(make([]byte, sha256.Size))
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Sign uses the specified private key to sign the hash.
func Sign(hash []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data := stamp(hash)

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, errors.New("invalid signature")
	}

	// Embed the Ardan id into the recovery byte.
	sig[crypto.RecoveryIDOffset] += ardanID

	return sig, nil
}

// FromAddress extracts the address for the account that signed the hash.
func FromAddress(hash []byte, sig []byte) (string, error) {
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: length %d", ErrInvalidSignatureFormat, len(sig))
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - ardanID
	if v != 0 && v != 1 {
		return "", fmt.Errorf("%w: recovery id", ErrInvalidSignatureFormat)
	}

	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] = v

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(stamp(hash), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSignatureFormat, err)
	}

	// Extract the account address from the public key.
	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// SignatureString returns the signature as a string.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents the hash with
// the Ardan stamp embedded into the final hash.
func stamp(hash []byte) []byte {

	// This stamp is used so signatures we produce when signing data
	// are always unique to the Ardan blockchain.
	stamp := []byte("\x19Ardan Signed Message:\n32")

	return crypto.Keccak256(stamp, hash)
}
