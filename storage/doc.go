// Package storage provides the key store backends that persist name to
// public key bindings.
//
// Backends are created from location URIs by the StoreFactory:
//
//   - sqlite://path/to/keys.sqlite - SQLite database (primary backend)
//   - memory:// - In-process map, for tests and ephemeral deployments
//   - file:///var/lib/keyserver - One file per registered name
//   - s3://bucket/prefix?region=us-east-1 - S3 or compatible object storage
//   - vault://host:8200/secret/embertalk - HashiCorp Vault KV v2
//
// Every backend enforces the registry's one invariant: a name is bound at
// most once, and concurrent registrations of the same name yield exactly one
// success. How that is achieved differs per backend (UNIQUE constraint,
// mutex, atomic link, conditional put, check-and-set).
package storage
