package client

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/embertalk/keyserver/cryptoutils"
	"github.com/embertalk/keyserver/enrollment"
	"github.com/embertalk/keyserver/httpserver"
	"github.com/embertalk/keyserver/interfaces"
	"github.com/embertalk/keyserver/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	issuer, err := enrollment.NewRandomIssuer()
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := httpserver.NewHandler(issuer, store, log)

	mux := chi.NewRouter()
	handler.RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return New(ts.URL)
}

func TestEnrollAndLookup(t *testing.T) {
	c := newTestClient(t)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	require.NoError(t, c.Enroll("alice", privPEM))

	got, err := c.LookupKey("alice")
	require.NoError(t, err)
	require.Equal(t, pubkey, got)
}

func TestEnrollDuplicateName(t *testing.T) {
	c := newTestClient(t)

	privA, _, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)
	privB, _, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	require.NoError(t, c.Enroll("alice", privA))
	require.ErrorIs(t, c.Enroll("alice", privB), interfaces.ErrNameTaken)
}

func TestLookupUnknownName(t *testing.T) {
	c := newTestClient(t)

	_, err := c.LookupKey("nobody")
	require.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestSubmitStaleResponse(t *testing.T) {
	c := newTestClient(t)

	// Challenge minted by a foreign issuer, i.e. a different server.
	foreignIssuer, err := enrollment.NewRandomIssuer()
	require.NoError(t, err)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := foreignIssuer.NewChallenge(pubkey)
	require.NoError(t, err)

	answer, err := enrollment.Solve(privPEM, "alice", challenge)
	require.NoError(t, err)

	require.ErrorIs(t, c.SubmitResponse(answer), enrollment.ErrChallengeFailed)
}

func TestEnrollRejectsBadPrivateKey(t *testing.T) {
	c := newTestClient(t)
	require.Error(t, c.Enroll("alice", []byte("not a key")))
}
