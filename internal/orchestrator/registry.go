// File: internal/orchestrator/registry.go
package orchestrator

import (
	"sync"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// Registry enforces per-device exclusivity: at most one running session per
// device serial. A second request for a busy device is refused immediately,
// nothing queues.
type Registry struct {
	mu     sync.RWMutex
	active map[string]string // device serial -> session ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]string)}
}

// Acquire claims the device for a session. Returns ErrDeviceBusy when another
// session already holds it.
func (r *Registry) Acquire(device, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[device]; busy {
		return schemas.ErrDeviceBusy
	}
	r.active[device] = sessionID
	return nil
}

// Release frees the device. Safe to call for a device that is not held.
func (r *Registry) Release(device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, device)
}

// ActiveSession reports the session currently holding the device, if any.
func (r *Registry) ActiveSession(device string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[device]
	return id, ok
}
