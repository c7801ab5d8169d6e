// Package interfaces defines the shared types and contracts used across the
// EmberTalk key server.
//
// The central abstraction is the KeyStore, the persistence layer binding
// registered names to client public keys. Multiple backends implement it
// (SQLite, in-memory, file, S3, Vault); handlers and clients only ever see
// the interface and the sentinel errors defined here.
package interfaces
