package cryptoutils

import (
	"golang.org/x/crypto/argon2"
)

// SealingKeySize is the AES-256 key size used to seal challenge state.
const SealingKeySize = 32

// DeriveSealingKey creates a deterministic challenge sealing key from an
// operator-provided secret using Argon2id. Configuring the same secret
// across restarts (or replicas) keeps outstanding challenges valid.
//
// Parameters: time=1, memory=64MiB, threads=4, as recommended for Argon2id.
func DeriveSealingKey(secret []byte) []byte {
	salt := []byte("embertalk-keyserver-sealing-v1")
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, SealingKeySize)
}
