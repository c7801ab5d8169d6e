package interfaces

import (
	"context"
	"errors"
)

// Storage layer errors.
var (
	// ErrNameTaken is returned by Register when the name is already bound
	// to a public key. Registrations are first-come-first-served and never
	// overwritten.
	ErrNameTaken = errors.New("name taken")

	// ErrNotFound is returned by Lookup when no registration exists for
	// the requested name.
	ErrNotFound = errors.New("name not found")

	// ErrInvalidLocationURI is returned by the store factory for
	// unparseable or unsupported location URIs.
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)

// StoreLocation identifies a key store backend as a URI, for example
// sqlite://keys.sqlite, memory://, file:///var/lib/keyserver,
// s3://bucket/prefix?region=us-east-1 or vault://host:8200/secret/embertalk.
type StoreLocation string

// KeyStore persists the name to public key bindings established through the
// enrollment protocol.
//
// Register must be atomic with respect to the uniqueness check: two
// concurrent registrations of the same name must result in exactly one
// success and one ErrNameTaken.
type KeyStore interface {
	// Register binds name to pubkey. Returns ErrNameTaken if the name is
	// already registered.
	Register(ctx context.Context, name RegisteredName, pubkey ClientPubkey) error

	// Lookup returns the public key registered under name, or ErrNotFound.
	Lookup(ctx context.Context, name RegisteredName) (ClientPubkey, error)

	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns a unique identifier for this store backend.
	Name() string

	// Close releases any resources held by the backend.
	Close() error
}
