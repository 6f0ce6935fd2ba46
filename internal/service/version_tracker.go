// Package service implements the tenant host: the registry of tenant
// settings and contexts, and the sync service that converges instances
// through a shared token store.
package service

import (
	"sync"

	"github.com/devrev/tenantsync/internal/model"
)

// VersionTracker remembers, per tenant, the last release and reload tokens
// this instance observed or wrote, plus the last catalog token. The sync
// loop compares remote tokens against it to decide what changed.
type VersionTracker struct {
	mu      sync.RWMutex
	records map[string]*model.TenantVersion
	catalog string
}

// NewVersionTracker creates an empty tracker.
func NewVersionTracker() *VersionTracker {
	return &VersionTracker{
		records: make(map[string]*model.TenantVersion),
	}
}

// record returns the mutable record for name, creating it if absent.
// Callers must hold mu.
func (t *VersionTracker) record(name string) *model.TenantVersion {
	r, ok := t.records[name]
	if !ok {
		r = &model.TenantVersion{Name: name}
		t.records[name] = r
	}
	return r
}

// GetOrCreate returns a copy of the record for name, creating an empty
// record if the tenant was never seen.
func (t *VersionTracker) GetOrCreate(name string) model.TenantVersion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.record(name)
}

// Seed overwrites the record for name without reporting a change. Used at
// bootstrap so tokens that predate this instance are absorbed silently.
func (t *VersionTracker) Seed(name, releaseID, reloadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.record(name)
	r.ReleaseID = releaseID
	r.ReloadID = reloadID
}

// SetRelease records a release token generated by this instance.
func (t *VersionTracker) SetRelease(name, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(name).ReleaseID = token
}

// SetReload records a reload token generated by this instance.
func (t *VersionTracker) SetReload(name, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(name).ReloadID = token
}

// UpdateRelease compares token against the stored release token for name.
// It reports true only for a non-empty token that differs from the stored
// one, and stores the new token before the caller applies any effect.
func (t *VersionTracker) UpdateRelease(name, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.record(name)
	if token == "" || token == r.ReleaseID {
		return false
	}
	r.ReleaseID = token
	return true
}

// UpdateReload is UpdateRelease for the reload token.
func (t *VersionTracker) UpdateReload(name, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.record(name)
	if token == "" || token == r.ReloadID {
		return false
	}
	r.ReloadID = token
	return true
}

// CatalogToken returns the last recorded catalog token.
func (t *VersionTracker) CatalogToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.catalog
}

// SetCatalogToken records the catalog token.
func (t *VersionTracker) SetCatalogToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.catalog = token
}

// Count returns the number of tracked tenants.
func (t *VersionTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
