package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/embertalk/keyserver/interfaces"
)

// VaultStore persists registrations in a HashiCorp Vault KV v2 mount.
// Uniqueness relies on check-and-set with version 0: the write only
// succeeds if no version of the secret exists yet.
type VaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultStore creates a Vault-backed key store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "embertalk")
//   - token: Vault token; when empty the VAULT_TOKEN environment variable
//     applies via the default client configuration
//   - log: Structured logger for operational insights
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// Register binds name to pubkey using check-and-set version 0, so an
// existing secret (any version, including soft-deleted) rejects the write.
func (s *VaultStore) Register(ctx context.Context, name interfaces.RegisteredName, pubkey interfaces.ClientPubkey) error {
	_, err := s.client.Logical().WriteWithContext(ctx, s.secretPath(name), map[string]interface{}{
		"data": map[string]interface{}{
			"pubkey": base64.StdEncoding.EncodeToString(pubkey),
		},
		"options": map[string]interface{}{
			"cas": 0,
		},
	})
	if err != nil {
		if isCASConflict(err) {
			return interfaces.ErrNameTaken
		}
		return fmt.Errorf("failed to write secret: %w", err)
	}

	s.log.Debug("Registered key",
		slog.String("name", string(name)),
		slog.String("mount", s.mountPath))
	return nil
}

// isCASConflict reports whether a KV v2 write failed because a version
// of the secret already exists. Vault signals this as a 400 whose error
// list mentions the check-and-set parameter; the bare substring check
// covers clients that flatten the response error.
func isCASConflict(err error) bool {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode != http.StatusBadRequest {
			return false
		}
		for _, msg := range respErr.Errors {
			if strings.Contains(msg, "check-and-set") {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), "check-and-set")
}

// Lookup returns the public key registered under name, or ErrNotFound.
func (s *VaultStore) Lookup(ctx context.Context, name interfaces.RegisteredName) (interfaces.ClientPubkey, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	encoded, ok := data["pubkey"].(string)
	if !ok {
		return nil, fmt.Errorf("secret for %s has no pubkey field", name)
	}

	pubkey, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored pubkey: %w", err)
	}

	return pubkey, nil
}

// Available checks Vault health via the sys endpoint.
func (s *VaultStore) Available(ctx context.Context) bool {
	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		s.log.Debug("Vault store unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns a unique identifier for this store backend.
func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s", s.mountPath)
}

// Close is a no-op for the Vault store.
func (s *VaultStore) Close() error {
	return nil
}

// secretPath maps a registered name to its KV v2 data path.
func (s *VaultStore) secretPath(name interfaces.RegisteredName) string {
	return fmt.Sprintf("%s/data/%s/%s", s.mountPath, s.dataPath, name)
}
