package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/embertalk/keyserver/interfaces"
)

// GenerateClientKey creates a new ECDSA P-256 keypair for an EmberTalk
// client and returns it in PEM form.
//
// Returns:
//   - Private key in EC PRIVATE KEY PEM format
//   - Public key as a ClientPubkey (PKIX PEM)
//   - Error if key generation or encoding fails
func GenerateClientKey() ([]byte, interfaces.ClientPubkey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	pubkeyPEM, err := MarshalClientPubkey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	return keyPEM, pubkeyPEM, nil
}

// MarshalClientPubkey encodes an ECDSA public key as a ClientPubkey PEM.
func MarshalClientPubkey(pubkey *ecdsa.PublicKey) (interfaces.ClientPubkey, error) {
	pubkeyBytes, err := x509.MarshalPKIXPublicKey(pubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubkeyBytes,
	}), nil
}

// PubkeyFromPrivateKey recovers the ClientPubkey PEM from a private key PEM,
// so clients only need to persist the private key.
func PubkeyFromPrivateKey(privateKeyPEM []byte) (interfaces.ClientPubkey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return MarshalClientPubkey(&privateKey.PublicKey)
}
