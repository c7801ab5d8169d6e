// Package enrollment implements the challenge/response protocol that proves
// a client holds the private key for the public key it wants to register.
//
// The server keeps no per-challenge state. When a client requests a
// challenge, the Issuer generates a random 32-byte challenge nonce, encrypts
// it to the client's public key, and seals {challenge nonce, pubkey} under a
// server-held AES-256-GCM key. The client carries the sealed state back
// together with the decrypted nonce; the Issuer unseals the state and
// compares the two in constant time. Only the sealing key's holder can mint
// or accept states, so a restart with a fresh random key invalidates all
// outstanding challenges.
package enrollment
