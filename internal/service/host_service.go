package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/metrics"
	"github.com/devrev/tenantsync/internal/model"
	"github.com/devrev/tenantsync/internal/store"
)

var (
	// ErrTenantNotFound is returned for operations on unknown tenants.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantExists is returned when creating a tenant whose name is taken.
	ErrTenantExists = errors.New("tenant already exists")

	// ErrHostNotStarted is returned when the host is used before Start.
	ErrHostNotStarted = errors.New("tenant host not started")
)

// HostEvents receives tenant lifecycle notifications. Each hook runs before
// the host mutates its own state, while the observer can still see the
// previous shape of the registry. Remote-originated applies do not notify.
type HostEvents interface {
	// OnInitializing runs once during Start, after settings are loaded
	// and before any tenant operation.
	OnInitializing(ctx context.Context) error

	// OnReleasing runs before a locally initiated release is applied.
	OnReleasing(ctx context.Context, name string) error

	// OnReloading runs before a locally initiated reload is applied.
	OnReloading(ctx context.Context, name string) error
}

// TenantHost owns the tenants this instance serves: their settings, their
// lazily built contexts, and the release and reload operations that tear
// contexts down.
type TenantHost struct {
	mu       sync.RWMutex
	settings map[string]*model.TenantSettings
	contexts map[string]*TenantContext
	started  bool

	observers []HostEvents
	builder   *ContextBuilder
	store     store.SettingsStore
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewTenantHost creates a host reading settings from settingsStore.
func NewTenantHost(settingsStore store.SettingsStore, builder *ContextBuilder, m *metrics.Metrics, logger *zap.Logger) *TenantHost {
	return &TenantHost{
		settings: make(map[string]*model.TenantSettings),
		contexts: make(map[string]*TenantContext),
		builder:  builder,
		store:    settingsStore,
		metrics:  m,
		logger:   logger,
	}
}

// Subscribe registers an observer. Must be called before Start.
func (h *TenantHost) Subscribe(events HostEvents) {
	h.observers = append(h.observers, events)
}

// Start loads every tenant's settings and notifies observers. It must
// complete before the host serves any operation.
func (h *TenantHost) Start(ctx context.Context) error {
	all, err := h.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tenant settings: %w", err)
	}

	h.mu.Lock()
	for _, s := range all {
		h.settings[s.Name] = s
	}
	h.started = true
	h.mu.Unlock()

	for _, obs := range h.observers {
		if err := obs.OnInitializing(ctx); err != nil {
			return fmt.Errorf("observer initialization failed: %w", err)
		}
	}

	h.logger.Info("tenant host started", zap.Int("tenants", len(all)))
	return nil
}

// ListSettings returns the settings of every known tenant, sorted by name.
func (h *TenantHost) ListSettings() []*model.TenantSettings {
	h.mu.RLock()
	out := make([]*model.TenantSettings, 0, len(h.settings))
	for _, s := range h.settings {
		out = append(out, s)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TryGetSettings returns the settings for name if the tenant is known.
func (h *TenantHost) TryGetSettings(name string) (*model.TenantSettings, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.settings[name]
	return s, ok
}

// GetScope returns a scope on the tenant's context, building the context on
// first use. Callers must release the scope.
func (h *TenantHost) GetScope(name string) (*Scope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil, ErrHostNotStarted
	}
	settings, ok := h.settings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, name)
	}

	c, ok := h.contexts[name]
	if !ok {
		c = h.builder.Build(settings)
		h.contexts[name] = c
		h.metrics.ContextsActive.Inc()
	}
	return newScope(c), nil
}

// Release drops the tenant's cached context. With notify set, observers run
// first so the release is published to other instances; remote applies pass
// notify=false.
func (h *TenantHost) Release(ctx context.Context, name string, notify bool) error {
	if _, ok := h.TryGetSettings(name); !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, name)
	}

	if notify {
		for _, obs := range h.observers {
			if err := obs.OnReleasing(ctx, name); err != nil {
				return fmt.Errorf("release notification failed: %w", err)
			}
		}
	}

	h.dropContext(name)
	h.logger.Info("tenant released",
		zap.String("tenant", name),
		zap.Bool("local", notify),
	)
	return nil
}

// Reload re-reads the tenant's settings from the settings store and drops
// any cached context so the next scope sees fresh settings. Names unknown
// to the host are loaded and registered; this is how an instance adopts a
// tenant created elsewhere.
func (h *TenantHost) Reload(ctx context.Context, name string, notify bool) error {
	if notify {
		for _, obs := range h.observers {
			if err := obs.OnReloading(ctx, name); err != nil {
				return fmt.Errorf("reload notification failed: %w", err)
			}
		}
	}

	settings, err := h.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTenantNotFound, name)
		}
		return fmt.Errorf("failed to reload tenant %s: %w", name, err)
	}

	h.mu.Lock()
	h.settings[name] = settings
	h.mu.Unlock()

	h.dropContext(name)
	h.logger.Info("tenant reloaded",
		zap.String("tenant", name),
		zap.Bool("local", notify),
	)
	return nil
}

// Shutdown releases every cached context.
func (h *TenantHost) Shutdown() {
	h.mu.Lock()
	contexts := h.contexts
	h.contexts = make(map[string]*TenantContext)
	h.mu.Unlock()

	for _, c := range contexts {
		h.metrics.ContextsActive.Dec()
		c.markReleased()
	}
	h.logger.Info("tenant host stopped")
}

func (h *TenantHost) dropContext(name string) {
	h.mu.Lock()
	c := h.contexts[name]
	delete(h.contexts, name)
	h.mu.Unlock()

	if c != nil {
		h.metrics.ContextsActive.Dec()
		c.markReleased()
	}
}
