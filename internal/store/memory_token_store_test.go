package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_GetSet(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	value, err := s.GetToken(ctx, CatalogKey)
	require.NoError(t, err)
	assert.Equal(t, "", value, "unwritten key should read as empty")

	require.NoError(t, s.SetToken(ctx, CatalogKey, "abc"))

	value, err = s.GetToken(ctx, CatalogKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, s.SetToken(ctx, CatalogKey, "def"))

	value, err = s.GetToken(ctx, CatalogKey)
	require.NoError(t, err)
	assert.Equal(t, "def", value, "second write should overwrite")
}

func TestMemoryTokenStore_NotShared(t *testing.T) {
	s := NewMemoryTokenStore()
	assert.False(t, s.Shared())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestMemoryTokenStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := ReleaseKey(fmt.Sprintf("tenant-%d", n%3))
			for j := 0; j < 100; j++ {
				_ = s.SetToken(ctx, key, fmt.Sprintf("%d-%d", n, j))
				_, _ = s.GetToken(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	value, err := s.GetToken(ctx, ReleaseKey("tenant-0"))
	require.NoError(t, err)
	assert.NotEmpty(t, value)
}

func TestTokenKeys(t *testing.T) {
	assert.Equal(t, "SHELLS_ID", CatalogKey)
	assert.Equal(t, "RELEASE_ID_acme", ReleaseKey("acme"))
	assert.Equal(t, "RELOAD_ID_acme", ReloadKey("acme"))
}
