package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/tokopos/api/internal/database"
)

// CounterStore defines the database methods needed by counter handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CounterStore interface {
	CreateTokenCounter(ctx context.Context, arg database.CreateTokenCounterParams) (database.TokenCounter, error)
	GetTokenCounter(ctx context.Context, arg database.GetTokenCounterParams) (database.TokenCounter, error)
	ListTokenCounters(ctx context.Context, tenantID uuid.UUID) ([]database.TokenCounter, error)
	UpdateTokenCounter(ctx context.Context, arg database.UpdateTokenCounterParams) (database.TokenCounter, error)
	DeleteTokenCounter(ctx context.Context, arg database.DeleteTokenCounterParams) error
}

// CounterHandler handles tenant-scoped token counter endpoints.
type CounterHandler struct {
	store CounterStore
}

// NewCounterHandler creates a new CounterHandler.
func NewCounterHandler(store CounterStore) *CounterHandler {
	return &CounterHandler{store: store}
}

// RegisterRoutes registers counter endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/counters
func (h *CounterHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type counterRequest struct {
	CounterName string `json:"counter_name"`
}

type counterResponse struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	CounterName string    `json:"counter_name"`
	LastToken   int32     `json:"last_token"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCounterResponse(c database.TokenCounter) counterResponse {
	return counterResponse{
		ID:          c.ID,
		TenantID:    c.TenantID,
		CounterName: c.CounterName,
		LastToken:   c.LastToken,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// --- Handlers ---

// Create handles POST /tenants/{tid}/counters.
func (h *CounterHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req counterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CounterName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "counter_name is required"})
		return
	}

	counter, err := h.store.CreateTokenCounter(r.Context(), database.CreateTokenCounterParams{
		TenantID:    tenantID,
		CounterName: req.CounterName,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "counter name already exists"})
			return
		}
		log.Error().Err(err).Msg("create counter")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCounterResponse(counter))
}

// List handles GET /tenants/{tid}/counters.
func (h *CounterHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	counters, err := h.store.ListTokenCounters(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("list counters")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]counterResponse, len(counters))
	for i, c := range counters {
		resp[i] = toCounterResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tenants/{tid}/counters/{id}.
func (h *CounterHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	counterID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid counter ID"})
		return
	}

	counter, err := h.store.GetTokenCounter(r.Context(), database.GetTokenCounterParams{
		ID:       counterID,
		TenantID: tenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "counter not found"})
			return
		}
		log.Error().Err(err).Msg("get counter")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCounterResponse(counter))
}

// Update handles PATCH /tenants/{tid}/counters/{id}. Only the name is
// mutable; last_token moves exclusively through atomic increments.
func (h *CounterHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	counterID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid counter ID"})
		return
	}

	var req counterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CounterName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "counter_name is required"})
		return
	}

	counter, err := h.store.UpdateTokenCounter(r.Context(), database.UpdateTokenCounterParams{
		ID:          counterID,
		TenantID:    tenantID,
		CounterName: req.CounterName,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "counter not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "counter name already exists"})
			return
		}
		log.Error().Err(err).Msg("update counter")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCounterResponse(counter))
}

// Delete handles DELETE /tenants/{tid}/counters/{id}.
func (h *CounterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	counterID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid counter ID"})
		return
	}

	err = h.store.DeleteTokenCounter(r.Context(), database.DeleteTokenCounterParams{
		ID:       counterID,
		TenantID: tenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "counter not found"})
			return
		}
		log.Error().Err(err).Msg("delete counter")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": counterID.String()})
}
