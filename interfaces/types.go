package interfaces

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ClientPubkey is a client's ECDSA public key in PKIX PEM encoding.
// It is the value bound to a registered name and the key challenges are
// encrypted to.
type ClientPubkey []byte

// GetECDSAPubkey parses the PEM-encoded public key.
// Returns an error if the PEM block is malformed or the key is not ECDSA.
func (p ClientPubkey) GetECDSAPubkey() (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(p)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}

	pubkeyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	pubkey, ok := pubkeyAny.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	return pubkey, nil
}

// Validate checks that the value is a well-formed ECDSA public key.
func (p ClientPubkey) Validate() error {
	_, err := p.GetECDSAPubkey()
	return err
}

// RegisteredName is the unique name a client claims for its public key.
type RegisteredName string

// MaxNameLength bounds accepted registration names.
const MaxNameLength = 255

// Validate rejects empty and oversized names. Names are otherwise opaque
// byte strings; uniqueness is enforced by the key store.
func (n RegisteredName) Validate() error {
	if len(n) == 0 {
		return errors.New("name must not be empty")
	}
	if len(n) > MaxNameLength {
		return fmt.Errorf("name exceeds %d bytes", MaxNameLength)
	}
	return nil
}
