package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/metrics"
)

func newTestBuilder() *ContextBuilder {
	return NewContextBuilder(newFakeTokenStore(), metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func TestContextBuilder_Build(t *testing.T) {
	builder := newTestBuilder()

	c1 := builder.Build(runningTenant("acme"))
	c2 := builder.Build(runningTenant("acme"))

	assert.NotEmpty(t, c1.ID)
	assert.NotEqual(t, c1.ID, c2.ID, "every build gets a fresh identity")
	assert.Equal(t, "acme", c1.Settings.Name)
	assert.False(t, c1.CreatedAt.IsZero())
	assert.NotNil(t, c1.TokenStore())
}

func TestScope_ReleaseIdempotent(t *testing.T) {
	c := newTestBuilder().Build(runningTenant("acme"))

	s := newScope(c)
	require.Equal(t, int32(1), c.refs.Load())

	s.Release()
	s.Release()
	assert.Equal(t, int32(0), c.refs.Load(), "double release must not go negative")
}

func TestTenantContext_DisposalWaitsForOpenScopes(t *testing.T) {
	c := newTestBuilder().Build(runningTenant("acme"))

	s := newScope(c)
	c.markReleased()

	// The open scope keeps the context usable after the host dropped it
	assert.NotNil(t, s.TokenStore())
	assert.Equal(t, "acme", s.Settings().Name)

	s.Release()
	assert.Equal(t, int32(0), c.refs.Load())
	assert.True(t, c.released.Load())
}

func TestTenantContext_ConcurrentScopes(t *testing.T) {
	c := newTestBuilder().Build(runningTenant("acme"))

	scopes := make([]*Scope, 8)
	for i := range scopes {
		scopes[i] = newScope(c)
	}
	assert.Equal(t, int32(8), c.refs.Load())

	c.markReleased()
	for _, s := range scopes {
		s.Release()
	}
	assert.Equal(t, int32(0), c.refs.Load())
}
