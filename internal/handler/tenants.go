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
	"github.com/tokopos/api/internal/enum"
)

// TenantStore defines the database methods needed by tenant handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TenantStore interface {
	CreateTenant(ctx context.Context, arg database.CreateTenantParams) (database.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	ListTenants(ctx context.Context) ([]database.Tenant, error)
	UpdateTenant(ctx context.Context, arg database.UpdateTenantParams) (database.Tenant, error)
}

// TenantHandler handles tenant administration endpoints (super-admin only).
type TenantHandler struct {
	store TenantStore
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(store TenantStore) *TenantHandler {
	return &TenantHandler{store: store}
}

// RegisterRoutes registers tenant endpoints on the given Chi router.
func (h *TenantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
}

// --- Request / Response types ---

type createTenantRequest struct {
	Name         string          `json:"name"`
	BusinessType string          `json:"business_type"`
	Metadata     json.RawMessage `json:"metadata"`
}

type updateTenantRequest struct {
	BusinessType string          `json:"business_type"`
	Active       *bool           `json:"active"`
	Metadata     json.RawMessage `json:"metadata"`
}

type tenantResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	BusinessType string          `json:"business_type"`
	Active       bool            `json:"active"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toTenantResponse(t database.Tenant) tenantResponse {
	return tenantResponse{
		ID:           t.ID,
		Name:         t.Name,
		BusinessType: t.BusinessType,
		Active:       t.Active,
		Metadata:     t.Metadata,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// --- Handlers ---

// Create handles POST /tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !enum.IsValidBusinessType(req.BusinessType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business_type"})
		return
	}

	tenant, err := h.store.CreateTenant(r.Context(), database.CreateTenantParams{
		Name:         req.Name,
		BusinessType: req.BusinessType,
		Metadata:     req.Metadata,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "tenant name already exists"})
			return
		}
		log.Error().Err(err).Msg("create tenant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

// List handles GET /tenants.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.store.ListTenants(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list tenants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tenantResponse, len(tenants))
	for i, t := range tenants {
		resp[i] = toTenantResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tenants/{id}.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Error().Err(err).Msg("get tenant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// Update handles PATCH /tenants/{id}. Only business type, active flag and
// metadata are mutable.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := h.store.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Error().Err(err).Msg("get tenant for update")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	params := database.UpdateTenantParams{
		ID:           id,
		BusinessType: current.BusinessType,
		Active:       current.Active,
		Metadata:     current.Metadata,
	}
	if req.BusinessType != "" {
		if !enum.IsValidBusinessType(req.BusinessType) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business_type"})
			return
		}
		params.BusinessType = req.BusinessType
	}
	if req.Active != nil {
		params.Active = *req.Active
	}
	if req.Metadata != nil {
		params.Metadata = req.Metadata
	}

	tenant, err := h.store.UpdateTenant(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("update tenant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}
