package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/metrics"
	"github.com/devrev/tenantsync/internal/model"
	"github.com/devrev/tenantsync/internal/store"
)

// TenantContext is the built runtime environment of one tenant. Contexts
// are built lazily, cached by the host, and torn down on release or reload.
// A context dropped by the host stays alive until its last open scope is
// released.
type TenantContext struct {
	ID        string
	Settings  *model.TenantSettings
	CreatedAt time.Time

	tokens   store.TokenStore
	refs     atomic.Int32
	released atomic.Bool
	teardown sync.Once
	logger   *zap.Logger
}

// TokenStore returns the shared token store bound to this context.
func (c *TenantContext) TokenStore() store.TokenStore {
	return c.tokens
}

func (c *TenantContext) acquire() {
	c.refs.Add(1)
}

func (c *TenantContext) releaseRef() {
	if c.refs.Add(-1) == 0 && c.released.Load() {
		c.dispose()
	}
}

// markReleased flags the context as dropped by the host. Disposal runs
// immediately when no scope is open, otherwise when the last scope closes.
func (c *TenantContext) markReleased() {
	c.released.Store(true)
	if c.refs.Load() == 0 {
		c.dispose()
	}
}

func (c *TenantContext) dispose() {
	c.teardown.Do(func() {
		c.logger.Debug("tenant context disposed",
			zap.String("tenant", c.Settings.Name),
			zap.String("context_id", c.ID),
		)
	})
}

// Scope is a handle on a tenant context. The wrapped context cannot be
// disposed while at least one scope is open. Release is idempotent.
type Scope struct {
	ctx  *TenantContext
	once sync.Once
}

func newScope(c *TenantContext) *Scope {
	c.acquire()
	return &Scope{ctx: c}
}

// Context returns the wrapped tenant context.
func (s *Scope) Context() *TenantContext {
	return s.ctx
}

// Settings returns the settings of the scoped tenant.
func (s *Scope) Settings() *model.TenantSettings {
	return s.ctx.Settings
}

// TokenStore returns the token store bound to the scoped tenant.
func (s *Scope) TokenStore() store.TokenStore {
	return s.ctx.TokenStore()
}

// Release drops the scope's hold on the context.
func (s *Scope) Release() {
	s.once.Do(s.ctx.releaseRef)
}

// ContextBuilder builds tenant contexts around the configured token store.
type ContextBuilder struct {
	tokens  store.TokenStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewContextBuilder creates a builder binding contexts to tokens.
func NewContextBuilder(tokens store.TokenStore, m *metrics.Metrics, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{
		tokens:  tokens,
		metrics: m,
		logger:  logger,
	}
}

// Build creates a fresh context for the given settings.
func (b *ContextBuilder) Build(settings *model.TenantSettings) *TenantContext {
	c := &TenantContext{
		ID:        uuid.NewString(),
		Settings:  settings,
		CreatedAt: time.Now(),
		tokens:    b.tokens,
		logger:    b.logger,
	}

	b.metrics.ContextsBuilt.Inc()
	b.logger.Debug("tenant context built",
		zap.String("tenant", settings.Name),
		zap.String("context_id", c.ID),
	)
	return c
}
