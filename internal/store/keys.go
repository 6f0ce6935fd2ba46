package store

// Token key layout. Every host instance derives the same key names, so a
// token written by one instance is read by all the others.

// CatalogKey holds the token bumped whenever a tenant unknown to some
// instance may have been created.
const CatalogKey = "SHELLS_ID"

// ReleaseKey returns the key carrying the release token for a tenant.
func ReleaseKey(name string) string {
	return "RELEASE_ID_" + name
}

// ReloadKey returns the key carrying the reload token for a tenant.
func ReloadKey(name string) string {
	return "RELOAD_ID_" + name
}
