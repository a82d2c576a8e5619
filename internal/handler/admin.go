package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/server/middleware"
	"github.com/leadkit/gateway/internal/service"
	"github.com/leadkit/gateway/internal/store"
)

// Defaults for keys issued without explicit limits.
const (
	DefaultRateLimitPerMinute = 60
	DefaultRateLimitPerDay    = 10000
)

// AdminHandler serves the operator API under /admin/v1. Callers are
// authenticated by middleware.RequireAdmin.
type AdminHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(s *store.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: s, logger: logger}
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/organizations", h.ListOrganizations)
	r.Post("/organizations", h.CreateOrganization)
	r.Get("/keys", h.ListKeys)
	r.Post("/keys", h.CreateKey)
	r.Delete("/keys/{keyID}", h.RevokeKey)
	r.Get("/request-logs", h.ListRequestLogs)
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type createKeyRequest struct {
	OrganizationID     string             `json:"organization_id" validate:"required"`
	Name               string             `json:"name" validate:"required,max=200"`
	Environment        string             `json:"environment" validate:"omitempty,oneof=live test"`
	Permissions        *model.Permissions `json:"permissions"`
	RateLimitPerMinute *int               `json:"rate_limit_per_minute" validate:"omitempty,min=0"`
	RateLimitPerDay    *int               `json:"rate_limit_per_day" validate:"omitempty,min=0"`
	AllowedIPs         []string           `json:"allowed_ips"`
	ExpiresAt          *time.Time         `json:"expires_at"`
}

// createKeyResponse carries the raw credential. It is shown exactly once.
type createKeyResponse struct {
	Data *model.APIKey `json:"data"`
	Key  string        `json:"key"`
}

// fail renders err as a problem, logging server-side failures.
func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if problem.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("admin request failed", "path", r.URL.Path, "error", err)
	}
	problem.WriteError(w, err, false, middleware.GetRequestID(r.Context()))
}

// ListOrganizations returns every tenant.
// GET /admin/v1/organizations
func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orgs)
}

// CreateOrganization creates a tenant.
// POST /admin/v1/organizations
func (h *AdminHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	org := &model.Organization{Name: req.Name}
	if err := h.store.CreateOrganization(r.Context(), org); err != nil {
		h.fail(w, r, storeError(err, "Organization"))
		return
	}
	writeData(w, http.StatusCreated, org)
}

// ListKeys returns the keys of one organization, or of all when
// organization_id is omitted.
// GET /admin/v1/keys
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context(), queryString(r, "organization_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, keys)
}

// CreateKey issues a new API key and returns the raw credential once.
// POST /admin/v1/keys
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()

	if _, err := h.store.GetOrganization(ctx, req.OrganizationID); err != nil {
		h.fail(w, r, refError(err, "organization_id"))
		return
	}
	if err := service.ValidateIPList(req.AllowedIPs); err != nil {
		h.fail(w, r, problem.BadRequest(err.Error()))
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		h.fail(w, r, problem.BadRequest("expires_at must be in the future"))
		return
	}

	key := &model.APIKey{
		OrganizationID:     req.OrganizationID,
		Name:               req.Name,
		Permissions:        model.ReadOnlyPermissions(),
		AllowedIPs:         model.IPList(req.AllowedIPs),
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		RateLimitPerDay:    DefaultRateLimitPerDay,
		ExpiresAt:          req.ExpiresAt,
	}
	if req.Permissions != nil {
		key.Permissions = *req.Permissions
	}
	if req.RateLimitPerMinute != nil {
		key.RateLimitPerMinute = *req.RateLimitPerMinute
	}
	if req.RateLimitPerDay != nil {
		key.RateLimitPerDay = *req.RateLimitPerDay
	}
	env := req.Environment
	if env == "" {
		env = model.KeyEnvLive
	}

	raw, err := service.IssueAPIKey(ctx, h.store, key, env)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("api key issued",
		"key_id", key.ID,
		"organization_id", key.OrganizationID,
		"prefix", key.KeyPrefix,
		"admin", operator(r),
	)
	writeJSON(w, http.StatusCreated, createKeyResponse{Data: key, Key: raw})
}

// RevokeKey deactivates a key. Revocation takes effect on the next request.
// DELETE /admin/v1/keys/{keyID}
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "keyID")
	if err := h.store.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.fail(w, r, problem.NotFound("API key not found"))
			return
		}
		h.fail(w, r, err)
		return
	}
	h.logger.Info("api key revoked", "key_id", id, "admin", operator(r))
	w.WriteHeader(http.StatusNoContent)
}

// ListRequestLogs returns recent audit entries, newest first.
// GET /admin/v1/request-logs
func (h *AdminHandler) ListRequestLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.ListRequestLogs(r.Context(), store.RequestLogFilter{
		OrganizationID: queryString(r, "organization_id"),
		APIKeyID:       queryString(r, "api_key_id"),
		Limit:          queryInt(r, "limit", 100),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, logs)
}

// operator names the admin behind r for log lines.
func operator(r *http.Request) string {
	if c := middleware.GetAdminClaims(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}
