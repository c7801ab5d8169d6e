package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/embertalk/keyserver/interfaces"
)

// SQLiteStore persists registrations in a SQLite database. This is the
// primary backend; the schema is a single keys table with a UNIQUE name
// column enforcing first-come-first-served registration.
type SQLiteStore struct {
	db          *sql.DB
	log         *slog.Logger
	locationURI string
}

// NewSQLiteStore opens (and if necessary creates) the database at path and
// applies the schema. WAL mode and a busy timeout are set for concurrent
// HTTP handler access.
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS keys (
		id INTEGER PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		pubkey BLOB
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{
		db:          db,
		log:         log,
		locationURI: fmt.Sprintf("sqlite://%s", path),
	}, nil
}

// Register binds name to pubkey. Uniqueness is delegated to the UNIQUE
// constraint; a conflicting insert affects zero rows and maps to
// ErrNameTaken.
func (s *SQLiteStore) Register(ctx context.Context, name interfaces.RegisteredName, pubkey interfaces.ClientPubkey) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keys (name, pubkey) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		string(name), []byte(pubkey))
	if err != nil {
		return fmt.Errorf("failed to insert key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return interfaces.ErrNameTaken
	}

	s.log.Debug("Registered key", slog.String("name", string(name)))
	return nil
}

// Lookup returns the public key registered under name, or ErrNotFound.
func (s *SQLiteStore) Lookup(ctx context.Context, name interfaces.RegisteredName) (interfaces.ClientPubkey, error) {
	var pubkey []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT pubkey FROM keys WHERE name = ?`, string(name)).Scan(&pubkey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query key: %w", err)
	}

	return pubkey, nil
}

// Available reports whether the database connection is healthy.
func (s *SQLiteStore) Available(ctx context.Context) bool {
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Debug("SQLite store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store backend.
func (s *SQLiteStore) Name() string {
	return s.locationURI
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
