package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/metrics"
	"github.com/devrev/tenantsync/internal/model"
	"github.com/devrev/tenantsync/internal/store"
)

// Cycle results reported to metrics.
const (
	cycleCompleted = "completed"
	cycleSkipped   = "skipped"
	cycleFailed    = "failed"
	cycleAbandoned = "abandoned"
)

// Apply actions reported to metrics.
const (
	actionRelease = "release"
	actionReload  = "reload"
)

// TenantRegistry is the view of the tenant host the sync service works
// against.
type TenantRegistry interface {
	ListSettings() []*model.TenantSettings
	TryGetSettings(name string) (*model.TenantSettings, bool)
	GetScope(name string) (*Scope, error)
	Release(ctx context.Context, name string, notify bool) error
	Reload(ctx context.Context, name string, notify bool) error
}

// SyncService converges this instance with tenant changes made on other
// instances. Instances never talk to each other; each one writes opaque
// tokens to the shared token store when it changes a tenant and polls for
// tokens it has not seen. SyncService implements HostEvents to publish
// local changes and runs the polling loop that applies remote ones.
type SyncService struct {
	registry TenantRegistry
	settings store.SettingsStore
	versions *VersionTracker
	locks    *LockRegistry

	defaultTenant string
	idleInterval  time.Duration
	busyBudget    time.Duration

	initialized atomic.Bool

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSyncService creates a sync service bound to the given registry.
func NewSyncService(registry TenantRegistry, settingsStore store.SettingsStore, defaultTenant string, idleInterval, busyBudget time.Duration, m *metrics.Metrics, logger *zap.Logger) *SyncService {
	return &SyncService{
		registry:      registry,
		settings:      settingsStore,
		versions:      NewVersionTracker(),
		locks:         NewLockRegistry(),
		defaultTenant: defaultTenant,
		idleInterval:  idleInterval,
		busyBudget:    busyBudget,
		metrics:       m,
		logger:        logger,
	}
}

// Initialized reports whether the sync loop is armed.
func (s *SyncService) Initialized() bool {
	return s.initialized.Load()
}

// Run drives the sync loop until ctx is cancelled. Cancellation is observed
// only during the idle wait; an in-flight cycle always runs to completion
// or to its busy budget.
func (s *SyncService) Run(ctx context.Context) error {
	s.logger.Info("sync loop started",
		zap.Duration("idle_interval", s.idleInterval),
		zap.Duration("busy_budget", s.busyBudget),
	)

	for {
		if !s.waitIdle(ctx) {
			s.logger.Info("sync loop stopped")
			return ctx.Err()
		}
		if !s.initialized.Load() {
			continue
		}
		s.runCycle(context.WithoutCancel(ctx))
	}
}

// waitIdle sleeps for the idle interval. It returns false when ctx was
// cancelled first.
func (s *SyncService) waitIdle(ctx context.Context) bool {
	timer := time.NewTimer(s.idleInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runCycle performs one pass: resolve the default tenant's context, pick up
// catalog changes, then compare and apply per-tenant tokens.
func (s *SyncService) runCycle(ctx context.Context) {
	start := time.Now()

	settings, ok := s.registry.TryGetSettings(s.defaultTenant)
	if !ok || !settings.IsRunning() {
		s.metrics.RecordSyncCycle(cycleSkipped, time.Since(start))
		return
	}

	scope, err := s.registry.GetScope(s.defaultTenant)
	if err != nil {
		s.logger.Warn("failed to resolve default tenant context", zap.Error(err))
		s.metrics.RecordSyncCycle(cycleFailed, time.Since(start))
		return
	}
	defer scope.Release()

	tokens := scope.TokenStore()
	if !tokens.Shared() {
		// Single instance, nothing to converge with
		s.metrics.RecordSyncCycle(cycleSkipped, time.Since(start))
		return
	}

	working, err := s.reconcileCatalog(ctx, tokens)
	if err != nil {
		s.logger.Error("catalog reconciliation failed", zap.Error(err))
		s.metrics.RecordSyncCycle(cycleFailed, time.Since(start))
		return
	}
	s.metrics.SetTenantsTracked(len(working))

	for _, tenant := range working {
		if time.Since(start) > s.busyBudget {
			s.logger.Debug("busy budget exhausted, abandoning cycle",
				zap.Duration("budget", s.busyBudget),
			)
			s.metrics.RecordSyncCycle(cycleAbandoned, time.Since(start))
			return
		}
		if err := s.syncTenant(ctx, tokens, tenant.Name); err != nil {
			s.logger.Error("failed to sync tenant",
				zap.String("tenant", tenant.Name),
				zap.Error(err),
			)
		}
	}

	s.metrics.RecordSyncCycle(cycleCompleted, time.Since(start))
}

// reconcileCatalog returns this cycle's working tenant list. When the
// remote catalog token differs from the last one seen, settings for names
// unknown to the registry are loaded and merged in. The local token is
// updated only after every load succeeded, so a failed reconcile is
// retried on the next cycle.
func (s *SyncService) reconcileCatalog(ctx context.Context, tokens store.TokenStore) ([]*model.TenantSettings, error) {
	working := s.registry.ListSettings()

	catalog, err := tokens.GetToken(ctx, store.CatalogKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog token: %w", err)
	}
	if catalog == "" || catalog == s.versions.CatalogToken() {
		return working, nil
	}

	names, err := s.settings.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	known := make(map[string]bool, len(working))
	for _, t := range working {
		known[t.Name] = true
	}

	var added int
	for _, name := range names {
		if known[name] {
			continue
		}
		settings, err := s.settings.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load new tenant %s: %w", name, err)
		}
		working = append(working, settings)
		added++
	}

	s.versions.SetCatalogToken(catalog)
	if added > 0 {
		s.logger.Info("discovered new tenants", zap.Int("count", added))
	}
	return working, nil
}

// syncTenant compares one tenant's remote tokens against the tracker and
// applies release and reload when they differ. The tenant lock covers the
// whole comparison and apply.
func (s *SyncService) syncTenant(ctx context.Context, tokens store.TokenStore, name string) error {
	release := s.locks.Acquire(name)
	defer release()

	releaseID, err := tokens.GetToken(ctx, store.ReleaseKey(name))
	if err != nil {
		return fmt.Errorf("failed to read release token: %w", err)
	}
	if s.versions.UpdateRelease(name, releaseID) {
		// Nothing to release before the tenant is adopted locally
		if _, known := s.registry.TryGetSettings(name); known {
			s.logger.Info("applying remote release", zap.String("tenant", name))
			if err := s.registry.Release(ctx, name, false); err != nil {
				return fmt.Errorf("failed to apply release: %w", err)
			}
			s.metrics.RecordApply(actionRelease)
		}
	}

	reloadID, err := tokens.GetToken(ctx, store.ReloadKey(name))
	if err != nil {
		return fmt.Errorf("failed to read reload token: %w", err)
	}
	if s.versions.UpdateReload(name, reloadID) {
		s.logger.Info("applying remote reload", zap.String("tenant", name))
		if err := s.registry.Reload(ctx, name, false); err != nil {
			return fmt.Errorf("failed to apply reload: %w", err)
		}
		s.metrics.RecordApply(actionReload)
	}

	return nil
}

// OnInitializing seeds the version tracker from the token store so tokens
// that predate this instance are recorded as seen, never replayed. Sync
// arms only when the default tenant exists and is running.
func (s *SyncService) OnInitializing(ctx context.Context) error {
	if s.initialized.Load() {
		return nil
	}

	settings, ok := s.registry.TryGetSettings(s.defaultTenant)
	if !ok || !settings.IsRunning() {
		s.logger.Info("default tenant not running, sync stays disarmed",
			zap.String("tenant", s.defaultTenant),
		)
		return nil
	}

	scope, err := s.registry.GetScope(s.defaultTenant)
	if err != nil {
		return fmt.Errorf("failed to resolve default tenant context: %w", err)
	}
	defer scope.Release()
	tokens := scope.TokenStore()

	catalog, err := tokens.GetToken(ctx, store.CatalogKey)
	if err != nil {
		return fmt.Errorf("failed to read catalog token: %w", err)
	}
	s.versions.SetCatalogToken(catalog)

	for _, tenant := range s.registry.ListSettings() {
		releaseID, err := tokens.GetToken(ctx, store.ReleaseKey(tenant.Name))
		if err != nil {
			return fmt.Errorf("failed to read release token for %s: %w", tenant.Name, err)
		}
		reloadID, err := tokens.GetToken(ctx, store.ReloadKey(tenant.Name))
		if err != nil {
			return fmt.Errorf("failed to read reload token for %s: %w", tenant.Name, err)
		}
		s.versions.Seed(tenant.Name, releaseID, reloadID)
	}

	s.initialized.Store(true)
	s.logger.Info("sync initialized", zap.Int("tenants", s.versions.Count()))
	return nil
}

// OnReleasing publishes a locally initiated release. A fresh token is
// recorded in the tracker first and then written to the shared store, so
// the next poll does not see this instance's own token as a change.
func (s *SyncService) OnReleasing(ctx context.Context, name string) error {
	release := s.locks.Acquire(name)
	defer release()

	scope, err := s.registry.GetScope(s.defaultTenant)
	if err != nil {
		return fmt.Errorf("failed to resolve default tenant context: %w", err)
	}
	defer scope.Release()

	token := uuid.NewString()
	s.versions.SetRelease(name, token)
	if err := scope.TokenStore().SetToken(ctx, store.ReleaseKey(name), token); err != nil {
		return fmt.Errorf("failed to publish release for %s: %w", name, err)
	}

	s.logger.Debug("published release", zap.String("tenant", name))
	return nil
}

// OnReloading publishes a locally initiated reload. The first reload of the
// default tenant on an uninitialized instance is the bootstrap signal: it
// arms the loop and publishes nothing. A reload of a name the registry does
// not know yet also bumps the catalog token, telling other instances to go
// looking for the new tenant.
func (s *SyncService) OnReloading(ctx context.Context, name string) error {
	if name == s.defaultTenant && !s.initialized.Load() {
		s.initialized.Store(true)
		s.logger.Info("sync armed by first default tenant reload")
		return nil
	}

	release := s.locks.Acquire(name)
	defer release()

	scope, err := s.registry.GetScope(s.defaultTenant)
	if err != nil {
		return fmt.Errorf("failed to resolve default tenant context: %w", err)
	}
	defer scope.Release()
	tokens := scope.TokenStore()

	token := uuid.NewString()
	s.versions.SetReload(name, token)
	if err := tokens.SetToken(ctx, store.ReloadKey(name), token); err != nil {
		return fmt.Errorf("failed to publish reload for %s: %w", name, err)
	}

	if _, known := s.registry.TryGetSettings(name); !known {
		catalog := uuid.NewString()
		s.versions.SetCatalogToken(catalog)
		if err := tokens.SetToken(ctx, store.CatalogKey, catalog); err != nil {
			return fmt.Errorf("failed to publish catalog token: %w", err)
		}
		s.logger.Info("announced new tenant", zap.String("tenant", name))
	}

	s.logger.Debug("published reload", zap.String("tenant", name))
	return nil
}
