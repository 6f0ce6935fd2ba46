package model

// TenantVersion records the last release and reload tokens observed for one
// tenant. The empty string means no token has been observed yet.
type TenantVersion struct {
	Name      string
	ReleaseID string
	ReloadID  string
}
