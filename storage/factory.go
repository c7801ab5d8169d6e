package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/embertalk/keyserver/interfaces"
)

// StoreFactory creates key store backends from location URIs.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance.
func NewStoreFactory(log *slog.Logger) *StoreFactory {
	return &StoreFactory{log: log}
}

// StoreFor creates a key store from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - sqlite:// - SQLite database file (primary backend)
//   - memory:// - In-process map store
//   - file:// - Local filesystem, one file per name
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2
//
// Returns ErrInvalidLocationURI if the URI is unparseable or the scheme is
// unsupported.
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.KeyStore, error) {
	u, err := url.Parse(string(location))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "sqlite":
		return sf.createSQLiteStore(u)
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return sf.createFileStore(u)
	case "s3":
		return sf.createS3Store(u)
	case "vault":
		return sf.createVaultStore(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// createSQLiteStore creates a SQLite store.
// URI format: sqlite://keys.sqlite or sqlite:///var/lib/keyserver/keys.sqlite
func (sf *StoreFactory) createSQLiteStore(u *url.URL) (interfaces.KeyStore, error) {
	sf.log.Debug("Creating SQLite store", slog.String("uri", u.String()))

	path := joinHostPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in sqlite URI", interfaces.ErrInvalidLocationURI)
	}

	return NewSQLiteStore(path, sf.log)
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StoreFactory) createFileStore(u *url.URL) (interfaces.KeyStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", u.String()))

	path := joinHostPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileStore(path, sf.log)
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=custom.s3.com
func (sf *StoreFactory) createS3Store(u *url.URL) (interfaces.KeyStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("uri", u.Host))

	bucketName := u.Host
	if bucketName == "" {
		return nil, fmt.Errorf("%w: missing bucket in s3 URI", interfaces.ErrInvalidLocationURI)
	}
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	} else {
		sf.log.Debug("No credentials in s3 URI, using default credential chain")
	}

	return NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey, sf.log)
}

// createVaultStore creates a Vault KV v2 store.
// URI format: vault://[TOKEN@]host:port/mount/path?tls=true
func (sf *StoreFactory) createVaultStore(u *url.URL) (interfaces.KeyStore, error) {
	sf.log.Debug("Creating Vault store", slog.String("host", u.Host))

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "http"
	if u.Query().Get("tls") == "true" {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	var token string
	if u.User != nil {
		token = u.User.Username()
	}

	return NewVaultStore(address, parts[0], parts[1], token, sf.log)
}

// joinHostPath reassembles a path that url.Parse split across Host and Path,
// which happens for relative paths like sqlite://keys.sqlite.
func joinHostPath(u *url.URL) string {
	if u.Host == "" {
		return u.Path
	}
	return u.Host + u.Path
}
