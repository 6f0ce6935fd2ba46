// Package handler provides HTTP request handlers for the admin API.
package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apierrors "github.com/devrev/tenantsync/internal/errors"
	"github.com/devrev/tenantsync/internal/model"
	"github.com/devrev/tenantsync/internal/service"
	"github.com/devrev/tenantsync/internal/store"
)

// TenantHost is the slice of the tenant host the handlers drive. Handler
// calls pass notify=true so changes made here are published to other
// instances.
type TenantHost interface {
	ListSettings() []*model.TenantSettings
	TryGetSettings(name string) (*model.TenantSettings, bool)
	Release(ctx context.Context, name string, notify bool) error
	Reload(ctx context.Context, name string, notify bool) error
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	host         TenantHost
	settings     store.SettingsStore
	errorHandler *apierrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(host TenantHost, settings store.SettingsStore, errorHandler *apierrors.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		host:         host,
		settings:     settings,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// CreateTenantRequest is the body of POST /v1/tenants.
type CreateTenantRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
}

// UpdateStateRequest is the body of PUT /v1/tenants/{name}/state.
type UpdateStateRequest struct {
	State string `json:"state"`
}

// ListTenantsResponse is the body of GET /v1/tenants.
type ListTenantsResponse struct {
	Tenants []*model.TenantSettings `json:"tenants"`
	Count   int                     `json:"count"`
}

// ActionResponse acknowledges a release or reload.
type ActionResponse struct {
	Status string `json:"status"`
	Tenant string `json:"tenant"`
}

// ListTenants handles GET /v1/tenants requests.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants := h.host.ListSettings()
	h.writeJSONResponse(w, http.StatusOK, ListTenantsResponse{
		Tenants: tenants,
		Count:   len(tenants),
	})
}

// GetTenant handles GET /v1/tenants/{name} requests.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	settings, ok := h.host.TryGetSettings(name)
	if !ok {
		h.errorHandler.HandleError(w, r, fmt.Errorf("%w: %s", service.ErrTenantNotFound, name))
		return
	}

	h.writeJSONResponse(w, http.StatusOK, settings)
}

// CreateTenant handles POST /v1/tenants requests. The new tenant is saved
// to the settings store and then reloaded through the host, which announces
// it to other instances.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if req.State == "" {
		req.State = model.StateRunning
	}

	settings := &model.TenantSettings{
		Name:        req.Name,
		State:       req.State,
		Description: req.Description,
	}
	if err := settings.Validate(); err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	if _, err := h.settings.Load(r.Context(), req.Name); err == nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("%w: %s", service.ErrTenantExists, req.Name))
		return
	} else if !stderrors.Is(err, store.ErrNotFound) {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.settings.Save(r.Context(), settings); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.host.Reload(r.Context(), req.Name, true); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("tenant created", zap.String("tenant", req.Name), zap.String("request_id", requestID))
	h.writeJSONResponse(w, http.StatusCreated, settings)
}

// ReleaseTenant handles POST /v1/tenants/{name}/release requests.
func (h *Handlers) ReleaseTenant(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.host.Release(r.Context(), name, true); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ActionResponse{Status: "released", Tenant: name})
}

// ReloadTenant handles POST /v1/tenants/{name}/reload requests.
func (h *Handlers) ReloadTenant(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := h.host.TryGetSettings(name); !ok {
		h.errorHandler.HandleError(w, r, fmt.Errorf("%w: %s", service.ErrTenantNotFound, name))
		return
	}
	if err := h.host.Reload(r.Context(), name, true); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ActionResponse{Status: "reloaded", Tenant: name})
}

// UpdateTenantState handles PUT /v1/tenants/{name}/state requests.
func (h *Handlers) UpdateTenantState(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	name := mux.Vars(r)["name"]

	var req UpdateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if req.State != model.StateRunning && req.State != model.StateDisabled {
		h.errorHandler.WriteValidationError(w, "state must be running or disabled", requestID)
		return
	}

	settings, err := h.settings.Load(r.Context(), name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	settings.State = req.State
	if err := h.settings.Save(r.Context(), settings); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.host.Reload(r.Context(), name, true); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("tenant state updated",
		zap.String("tenant", name),
		zap.String("state", req.State),
		zap.String("request_id", requestID),
	)
	h.writeJSONResponse(w, http.StatusOK, settings)
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
