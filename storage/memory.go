package storage

import (
	"context"
	"sync"

	"github.com/embertalk/keyserver/interfaces"
)

// MemoryStore is an in-process KeyStore. Registrations do not survive the
// process; it exists for tests and ephemeral deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[interfaces.RegisteredName]interfaces.ClientPubkey
}

// NewMemoryStore creates an empty in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: map[interfaces.RegisteredName]interfaces.ClientPubkey{},
	}
}

// Register binds name to pubkey, or returns ErrNameTaken.
func (s *MemoryStore) Register(ctx context.Context, name interfaces.RegisteredName, pubkey interfaces.ClientPubkey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[name]; ok {
		return interfaces.ErrNameTaken
	}

	stored := make(interfaces.ClientPubkey, len(pubkey))
	copy(stored, pubkey)
	s.keys[name] = stored
	return nil
}

// Lookup returns the public key registered under name, or ErrNotFound.
func (s *MemoryStore) Lookup(ctx context.Context, name interfaces.RegisteredName) (interfaces.ClientPubkey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pubkey, ok := s.keys[name]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	out := make(interfaces.ClientPubkey, len(pubkey))
	copy(out, pubkey)
	return out, nil
}

// Available always reports true.
func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this store backend.
func (s *MemoryStore) Name() string {
	return "memory"
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
