package service

import "sync"

// LockRegistry provides one mutex per tenant name. The lock for a tenant is
// held across its release, reload, and remote-token comparison, so local
// operations and the sync loop never interleave on the same tenant.
//
// Entries are never removed. Deleting an entry while another goroutine is
// blocked on Acquire for the same name would hand out a second mutex and
// break mutual exclusion, so the registry grows with the set of tenant
// names instead.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire blocks until the lock for name is held and returns its release
// function. Callers must call release exactly once.
func (r *LockRegistry) Acquire(name string) (release func()) {
	r.mu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Len returns the number of tenant locks created so far.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
