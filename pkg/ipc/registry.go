package ipc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotRegistered is returned when no device matches a path.
var ErrNotRegistered = errors.New("ipc: no device registered for path")

// Registry maps device names to the queues serving them. OPEN paths are
// routed by longest registered prefix; the service owning the queue checks
// the exact name.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Queue
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Queue)}
}

// Register binds name to q.
func (r *Registry) Register(name string, q *Queue) error {
	if name == "" || !strings.HasPrefix(name, "/") {
		return fmt.Errorf("ipc: invalid device name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[name]; exists {
		return fmt.Errorf("ipc: device %q already registered", name)
	}
	r.devices[name] = q
	return nil
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.devices, name)
	r.mu.Unlock()
}

// Lookup returns the queue whose name is the longest prefix of path.
func (r *Registry) Lookup(path string) (*Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  *Queue
		bestN int
	)
	for name, q := range r.devices {
		if strings.HasPrefix(path, name) && len(name) > bestN {
			best, bestN = q, len(name)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, path)
	}
	return best, nil
}

// Names returns the registered device names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for n := range r.devices {
		names = append(names, n)
	}
	return names
}
