// Package model defines the domain types shared across the tenant host.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultTenantName is the tenant that anchors the host. Cross-instance
// sync only starts once the default tenant exists and is running.
const DefaultTenantName = "default"

// Tenant lifecycle states.
const (
	StateUninitialized = "uninitialized"
	StateRunning       = "running"
	StateDisabled      = "disabled"
)

var tenantNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// TenantSettings describes a tenant as persisted in the settings store.
type TenantSettings struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// IsRunning reports whether the tenant should be serving.
func (s *TenantSettings) IsRunning() bool {
	return s.State == StateRunning
}

// Validate checks that the settings are well formed.
func (s *TenantSettings) Validate() error {
	if !tenantNamePattern.MatchString(s.Name) {
		return fmt.Errorf("invalid tenant name: %q", s.Name)
	}
	if !ValidState(s.State) {
		return fmt.Errorf("invalid tenant state: %q", s.State)
	}
	return nil
}

// ValidState reports whether state is one of the known lifecycle states.
func ValidState(state string) bool {
	switch state {
	case StateUninitialized, StateRunning, StateDisabled:
		return true
	}
	return false
}
