package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/embertalk/keyserver/enrollment"
	"github.com/embertalk/keyserver/interfaces"
	"github.com/embertalk/keyserver/metrics"
)

// maxRequestBody bounds protocol request bodies. Challenges and responses
// are a few KB; anything larger is abuse.
const maxRequestBody = 64 * 1024

// ChallengeRequest is the body of POST /challenge.
type ChallengeRequest struct {
	Pubkey interfaces.ClientPubkey `json:"pubkey"`
}

// LookupResponse is the body of a successful GET /key/{name}.
type LookupResponse struct {
	Pubkey interfaces.ClientPubkey `json:"pubkey"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler processes the key server's protocol requests. It glues the
// enrollment issuer to the key store: challenges prove key possession,
// the store enforces name uniqueness.
type Handler struct {
	issuer  *enrollment.Issuer
	store   interfaces.KeyStore
	metrics *metrics.MetricsServer
	log     *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
func NewHandler(issuer *enrollment.Issuer, store interfaces.KeyStore, log *slog.Logger) *Handler {
	return &Handler{
		issuer: issuer,
		store:  store,
		log:    log,
	}
}

// WithMetrics attaches the service counters. Called by the server during
// wiring; handlers work unmetered without it.
func (h *Handler) WithMetrics(m *metrics.MetricsServer) *Handler {
	h.metrics = m
	return h
}

// RegisterRoutes mounts the protocol routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/challenge", h.HandleChallenge)
	r.Post("/response", h.HandleResponse)
	r.Get("/key/{name}", h.HandleKeyLookup)
}

// Ready reports whether the handler can serve requests, i.e. the key store
// is reachable.
func (h *Handler) Ready(ctx context.Context) bool {
	return h.store.Available(ctx)
}

// HandleChallenge processes an enrollment challenge request.
//
// Request body: {"pubkey": <PEM-encoded ECDSA public key>}
// Response 200: {"challenge": ..., "state": ..., "nonce": ...}
// The challenge nonce is encrypted to the submitted public key; the sealed
// state must be echoed back unchanged in the subsequent POST /response.
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	challenge, err := h.issuer.NewChallenge(req.Pubkey)
	if err != nil {
		h.log.Debug("Rejected challenge request", "err", err)
		writeError(w, http.StatusBadRequest, "invalid pubkey")
		return
	}

	if h.metrics != nil {
		h.metrics.ChallengesIssued.Inc()
	}
	writeJSON(w, http.StatusOK, challenge)
}

// HandleResponse processes a challenge response and registers the name.
//
// Request body: {"response": ..., "state": ..., "nonce": ..., "name": ...}
// Response codes:
//   - 201 on successful registration
//   - 400 {"error":"failed challenge"} for an unverifiable response
//   - 409 {"error":"name taken"} if the name is already registered
//   - 500 {"error":"could not insert"} on storage failure
func (h *Handler) HandleResponse(w http.ResponseWriter, r *http.Request) {
	var resp enrollment.Response
	if err := decodeJSON(w, r, &resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pubkey, err := h.issuer.VerifyResponse(resp)
	if err != nil {
		h.countRegistration("failed_challenge")
		writeError(w, http.StatusBadRequest, "failed challenge")
		return
	}

	name := interfaces.RegisteredName(resp.Name)
	if err := name.Validate(); err != nil {
		h.countRegistration("invalid_name")
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}

	err = h.store.Register(r.Context(), name, pubkey)
	switch {
	case errors.Is(err, interfaces.ErrNameTaken):
		h.log.Info("Name already registered", slog.String("name", resp.Name))
		h.countRegistration("name_taken")
		writeError(w, http.StatusConflict, "name taken")
	case err != nil:
		h.log.Error("Failed to register key", "err", err, slog.String("name", resp.Name))
		h.countRegistration("error")
		writeError(w, http.StatusInternalServerError, "could not insert")
	default:
		h.log.Info("Registered key", slog.String("name", resp.Name))
		h.countRegistration("registered")
		writeJSON(w, http.StatusCreated, nil)
	}
}

// HandleKeyLookup returns the public key registered under a name.
//
// URL format: GET /key/{name}
// Response 200: {"pubkey": <PEM-encoded public key>}
// Response 404: {"error":"not found"}
func (h *Handler) HandleKeyLookup(w http.ResponseWriter, r *http.Request) {
	name := interfaces.RegisteredName(chi.URLParam(r, "name"))

	pubkey, err := h.store.Lookup(r.Context(), name)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		h.log.Debug("Lookup for unknown name", slog.String("name", string(name)))
		h.countLookup("not_found")
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.log.Error("Failed to look up key", "err", err, slog.String("name", string(name)))
		h.countLookup("error")
		writeError(w, http.StatusInternalServerError, "lookup failed")
	default:
		h.countLookup("found")
		writeJSON(w, http.StatusOK, LookupResponse{Pubkey: pubkey})
	}
}

func (h *Handler) countRegistration(outcome string) {
	if h.metrics != nil {
		h.metrics.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countLookup(outcome string) {
	if h.metrics != nil {
		h.metrics.Lookups.WithLabelValues(outcome).Inc()
	}
}

// decodeJSON bounds and decodes a request body. Unknown fields are
// ignored so newer clients can carry extra fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
