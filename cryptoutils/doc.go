// Package cryptoutils provides the cryptographic primitives used by the
// EmberTalk key server and its clients.
//
// It implements ECIES encryption to client ECDSA P-256 public keys (used to
// deliver challenge nonces that only the key holder can recover), client
// keypair generation with PEM encoding, and Argon2id derivation of the
// server's challenge sealing key from an operator-provided secret.
package cryptoutils
