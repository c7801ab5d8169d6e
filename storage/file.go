package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/embertalk/keyserver/interfaces"
)

// FileStore keeps one file per registered name in a directory. File names
// are the SHA-256 of the registered name, so arbitrary names cannot escape
// the base directory.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file-backed key store rooted at baseDir, creating
// the directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Register binds name to pubkey. The key is written to a temporary file
// and linked into place, so the name's path only ever appears fully
// written: a failed or interrupted write cannot poison the name, and
// uniqueness comes from link(2) refusing to replace an existing path.
func (s *FileStore) Register(ctx context.Context, name interfaces.RegisteredName, pubkey interfaces.ClientPubkey) error {
	path := s.keyPath(name)

	tmp, err := os.CreateTemp(s.baseDir, ".reg-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(pubkey); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close key file: %w", err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if os.IsExist(err) {
			return interfaces.ErrNameTaken
		}
		return fmt.Errorf("failed to publish key file: %w", err)
	}

	s.log.Debug("Registered key",
		slog.String("name", string(name)),
		slog.String("path", path))
	return nil
}

// Lookup returns the public key registered under name, or ErrNotFound.
func (s *FileStore) Lookup(ctx context.Context, name interfaces.RegisteredName) (interfaces.ClientPubkey, error) {
	data, err := os.ReadFile(s.keyPath(name))
	if os.IsNotExist(err) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	return data, nil
}

// Available checks that the base directory still exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store backend.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

// keyPath maps a registered name to its file path.
func (s *FileStore) keyPath(name interfaces.RegisteredName) string {
	sum := sha256.Sum256([]byte(name))
	return filepath.Join(s.baseDir, fmt.Sprintf("%x", sum))
}
