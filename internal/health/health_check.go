// Package health provides liveness and readiness probe handlers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/store"
)

const checkTimeout = 5 * time.Second

// SyncStatus reports whether the sync loop is armed.
type SyncStatus interface {
	Initialized() bool
}

// HealthChecker provides health check endpoints
type HealthChecker struct {
	settingsStore store.SettingsStore
	tokenStore    store.TokenStore
	sync          SyncStatus
	logger        *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(settingsStore store.SettingsStore, tokenStore store.TokenStore, sync SyncStatus, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		settingsStore: settingsStore,
		tokenStore:    tokenStore,
		sync:          sync,
		logger:        logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkSettingsStore(ctx); err != nil {
		h.logger.Error("settings store health check failed", zap.Error(err))
		checks["settings_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["settings_store"] = "healthy"
	}

	if err := h.checkTokenStore(ctx); err != nil {
		h.logger.Error("token store health check failed", zap.Error(err))
		checks["token_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["token_store"] = "healthy"
	}

	// A dormant sync loop is a valid single-instance deployment, so this
	// check is informational only.
	if h.sync != nil && h.sync.Initialized() {
		checks["sync"] = "armed"
	} else {
		checks["sync"] = "dormant"
	}

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if allHealthy {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}

func (h *HealthChecker) checkSettingsStore(ctx context.Context) error {
	if h.settingsStore == nil {
		return nil
	}
	return h.settingsStore.Ping(ctx)
}

func (h *HealthChecker) checkTokenStore(ctx context.Context) error {
	if h.tokenStore == nil {
		return nil
	}
	return h.tokenStore.Ping(ctx)
}
