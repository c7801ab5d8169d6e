package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertalk/keyserver/interfaces"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storeContract runs the KeyStore contract every backend must satisfy.
func storeContract(t *testing.T, store interfaces.KeyStore) {
	t.Helper()
	ctx := context.Background()

	pubkey := interfaces.ClientPubkey("-----BEGIN PUBLIC KEY-----\ntest\n-----END PUBLIC KEY-----\n")
	otherKey := interfaces.ClientPubkey("-----BEGIN PUBLIC KEY-----\nother\n-----END PUBLIC KEY-----\n")

	// Lookup before registration
	_, err := store.Lookup(ctx, "alice")
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	// First registration wins
	require.NoError(t, store.Register(ctx, "alice", pubkey))

	got, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)

	// Second registration of the same name fails and does not overwrite
	err = store.Register(ctx, "alice", otherKey)
	require.ErrorIs(t, err, interfaces.ErrNameTaken)

	got, err = store.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)

	// Unrelated names are independent
	require.NoError(t, store.Register(ctx, "bob", otherKey))
	got, err = store.Lookup(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, otherKey, got)

	require.True(t, store.Available(ctx))
	require.NotEmpty(t, store.Name())
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), discardLogger())
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestSQLiteStoreContract(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "keys.sqlite"), discardLogger())
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestConcurrentRegistrationsSingleWinner(t *testing.T) {
	stores := map[string]interfaces.KeyStore{
		"memory": NewMemoryStore(),
	}

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "keys.sqlite"), discardLogger())
	require.NoError(t, err)
	stores["sqlite"] = sqliteStore

	fileStore, err := NewFileStore(t.TempDir(), discardLogger())
	require.NoError(t, err)
	stores["file"] = fileStore

	for label, store := range stores {
		t.Run(label, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			const racers = 16
			var wg sync.WaitGroup
			errs := make([]error, racers)

			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					pubkey := interfaces.ClientPubkey(fmt.Sprintf("key-%d", i))
					errs[i] = store.Register(ctx, "contested", pubkey)
				}(i)
			}
			wg.Wait()

			winners := 0
			for _, err := range errs {
				if err == nil {
					winners++
				} else {
					require.ErrorIs(t, err, interfaces.ErrNameTaken)
				}
			}
			require.Equal(t, 1, winners)
		})
	}
}

func TestFileStoreHandlesPathologicalNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), discardLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	pubkey := interfaces.ClientPubkey("key material")

	// Names with path separators must not escape the base directory.
	require.NoError(t, store.Register(ctx, "../../etc/passwd", pubkey))
	got, err := store.Lookup(ctx, "../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)
}

func TestFileStorePartialWriteDoesNotClaimName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	pubkey := interfaces.ClientPubkey("key material")

	// A registration that dies mid-write leaves at most an unpublished
	// temp file. The name must stay unclaimed and registrable.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reg-interrupted"), []byte("trunc"), 0644))

	_, err = store.Lookup(ctx, "alice")
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.Register(ctx, "alice", pubkey))
	got, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)
}

func TestFileStoreLosingRegistrationLeavesNoResidue(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	pubkey := interfaces.ClientPubkey("key material")

	require.NoError(t, store.Register(ctx, "alice", pubkey))
	err = store.Register(ctx, "alice", interfaces.ClientPubkey("other"))
	require.ErrorIs(t, err, interfaces.ErrNameTaken)

	// The losing attempt's temp file is gone and the stored key is intact.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)
}

func TestStoreFactory(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	t.Run("memory", func(t *testing.T) {
		store, err := factory.StoreFor("memory://")
		require.NoError(t, err)
		require.IsType(t, &MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "keys.sqlite")
		store, err := factory.StoreFor(interfaces.StoreLocation("sqlite://" + dbPath))
		require.NoError(t, err)
		require.IsType(t, &SQLiteStore{}, store)
		require.NoError(t, store.Close())
	})

	t.Run("file", func(t *testing.T) {
		store, err := factory.StoreFor(interfaces.StoreLocation("file://" + t.TempDir()))
		require.NoError(t, err)
		require.IsType(t, &FileStore{}, store)
	})

	t.Run("s3", func(t *testing.T) {
		store, err := factory.StoreFor("s3://key-bucket/embertalk?region=eu-west-1")
		require.NoError(t, err)
		require.IsType(t, &S3Store{}, store)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		_, err := factory.StoreFor("s3://")
		require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
	})

	t.Run("vault", func(t *testing.T) {
		store, err := factory.StoreFor("vault://127.0.0.1:8200/secret/embertalk")
		require.NoError(t, err)
		require.IsType(t, &VaultStore{}, store)
	})

	t.Run("vault without path", func(t *testing.T) {
		_, err := factory.StoreFor("vault://127.0.0.1:8200/secret")
		require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := factory.StoreFor("redis://localhost")
		require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
	})
}
