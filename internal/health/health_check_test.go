package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/model"
)

// stubSettingsStore answers Ping with a configured error.
type stubSettingsStore struct {
	pingErr error
}

func (s *stubSettingsStore) ListNames(context.Context) ([]string, error)     { return nil, nil }
func (s *stubSettingsStore) Load(context.Context, string) (*model.TenantSettings, error) {
	return nil, nil
}
func (s *stubSettingsStore) LoadAll(context.Context) ([]*model.TenantSettings, error) {
	return nil, nil
}
func (s *stubSettingsStore) Save(context.Context, *model.TenantSettings) error { return nil }
func (s *stubSettingsStore) Ping(context.Context) error                        { return s.pingErr }
func (s *stubSettingsStore) Close()                                            {}

// stubTokenStore answers Ping with a configured error.
type stubTokenStore struct {
	pingErr error
}

func (s *stubTokenStore) GetToken(context.Context, string) (string, error) { return "", nil }
func (s *stubTokenStore) SetToken(context.Context, string, string) error   { return nil }
func (s *stubTokenStore) Shared() bool                                     { return true }
func (s *stubTokenStore) Ping(context.Context) error                       { return s.pingErr }
func (s *stubTokenStore) Close() error                                     { return nil }

type stubSyncStatus struct {
	armed bool
}

func (s *stubSyncStatus) Initialized() bool { return s.armed }

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status
}

func TestLivenessHandler(t *testing.T) {
	checker := NewHealthChecker(nil, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "alive", status.Status)
	assert.NotZero(t, status.Timestamp)
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	checker := NewHealthChecker(&stubSettingsStore{}, &stubTokenStore{}, &stubSyncStatus{armed: true}, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "healthy", status.Checks["settings_store"])
	assert.Equal(t, "healthy", status.Checks["token_store"])
	assert.Equal(t, "armed", status.Checks["sync"])
}

func TestReadinessHandler_SettingsStoreDown(t *testing.T) {
	checker := NewHealthChecker(&stubSettingsStore{pingErr: errors.New("connection refused")}, &stubTokenStore{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "not_ready", status.Status)
	assert.Contains(t, status.Checks["settings_store"], "unhealthy")
}

func TestReadinessHandler_TokenStoreDown(t *testing.T) {
	checker := NewHealthChecker(&stubSettingsStore{}, &stubTokenStore{pingErr: errors.New("timeout")}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "not_ready", status.Status)
	assert.Contains(t, status.Checks["token_store"], "unhealthy")
}

func TestReadinessHandler_DormantSyncStillReady(t *testing.T) {
	checker := NewHealthChecker(&stubSettingsStore{}, &stubTokenStore{}, &stubSyncStatus{armed: false}, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	// A single-instance deployment never arms sync; that must not fail
	// the readiness probe.
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "dormant", status.Checks["sync"])
}
