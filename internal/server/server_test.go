package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/config"
	"github.com/devrev/tenantsync/internal/health"
	"github.com/devrev/tenantsync/internal/metrics"
	"github.com/devrev/tenantsync/internal/model"
	"github.com/devrev/tenantsync/internal/store"
)

// stubHost serves a single tenant named acme.
type stubHost struct{}

func (stubHost) ListSettings() []*model.TenantSettings {
	return []*model.TenantSettings{{Name: "acme", State: model.StateRunning}}
}

func (stubHost) TryGetSettings(name string) (*model.TenantSettings, bool) {
	if name == "acme" {
		return &model.TenantSettings{Name: "acme", State: model.StateRunning}, true
	}
	return nil, false
}

func (stubHost) Release(context.Context, string, bool) error { return nil }
func (stubHost) Reload(context.Context, string, bool) error  { return nil }

type stubSettings struct{}

func (stubSettings) ListNames(context.Context) ([]string, error) { return []string{"acme"}, nil }
func (stubSettings) Load(_ context.Context, name string) (*model.TenantSettings, error) {
	if name == "acme" {
		return &model.TenantSettings{Name: "acme", State: model.StateRunning}, nil
	}
	return nil, store.ErrNotFound
}
func (stubSettings) LoadAll(context.Context) ([]*model.TenantSettings, error) {
	return []*model.TenantSettings{{Name: "acme", State: model.StateRunning}}, nil
}
func (stubSettings) Save(context.Context, *model.TenantSettings) error { return nil }
func (stubSettings) Ping(context.Context) error                        { return nil }
func (stubSettings) Close()                                            {}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	logger := zap.NewNop()
	checker := health.NewHealthChecker(stubSettings{}, nil, nil, logger)
	srv := NewServer(cfg, stubHost{}, stubSettings{}, checker, metrics.New(prometheus.NewRegistry()), logger)
	srv.SetupRoutes()
	return srv
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"liveness", http.MethodGet, "/health/live", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"list tenants", http.MethodGet, "/v1/tenants", "", http.StatusOK},
		{"get tenant", http.MethodGet, "/v1/tenants/acme", "", http.StatusOK},
		{"get missing tenant", http.MethodGet, "/v1/tenants/ghost", "", http.StatusNotFound},
		{"release tenant", http.MethodPost, "/v1/tenants/acme/release", "", http.StatusOK},
		{"reload tenant", http.MethodPost, "/v1/tenants/acme/reload", "", http.StatusOK},
		{"update state", http.MethodPut, "/v1/tenants/acme/state", `{"state":"disabled"}`, http.StatusOK},
		{"unknown endpoint", http.MethodGet, "/v1/nothing", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/v1/tenants", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}

			rec := httptest.NewRecorder()
			srv.GetHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestServer_ErrorBodyShape(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nothing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["error_code"])
	assert.NotEmpty(t, body["message"])
}

func TestServer_RequestIDOnResponses(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), "request ID is generated when missing")

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
}

func TestServer_RateLimiter(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimiter.Enabled = true
		cfg.RateLimiter.RequestsPerSecond = 0.001
		cfg.RateLimiter.BurstSize = 2
	})

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants", nil))
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
