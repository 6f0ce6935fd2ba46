// Package store provides the persistence layer of the tenant host: a shared
// token store carrying the cross-instance sync signals and a settings store
// holding the tenant catalog.
package store

import (
	"context"
	"errors"

	"github.com/devrev/tenantsync/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TokenStore is a key-value store holding the opaque sync tokens written and
// polled by host instances. Implementations return the empty string for keys
// that were never written.
type TokenStore interface {
	// GetToken returns the token stored under key, or "" when absent.
	GetToken(ctx context.Context, key string) (string, error)

	// SetToken stores value under key, overwriting any previous token.
	SetToken(ctx context.Context, key, value string) error

	// Shared reports whether writes are visible to other host instances.
	// With a non-shared store there is nothing to converge with and the
	// sync loop skips its work entirely.
	Shared() bool

	Ping(ctx context.Context) error
	Close() error
}

// SettingsStore persists tenant settings. It is the source of truth for
// which tenants exist; host instances discover new tenants by re-reading it.
type SettingsStore interface {
	ListNames(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (*model.TenantSettings, error)
	LoadAll(ctx context.Context) ([]*model.TenantSettings, error)
	Save(ctx context.Context, settings *model.TenantSettings) error
	Ping(ctx context.Context) error
	Close()
}
