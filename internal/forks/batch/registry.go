package batch

import (
	"sort"
	"sync"
)

// Registry tracks repositories with a sync in flight. Share one Registry
// between orchestrators to keep concurrent batches off the same repository.
type Registry struct {
	mutex  sync.Mutex
	active map[string]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// TryAcquire marks key as in flight. It returns false when key is already held.
func (registry *Registry) TryAcquire(key string) bool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if _, held := registry.active[key]; held {
		return false
	}
	registry.active[key] = struct{}{}
	return true
}

// Release frees key.
func (registry *Registry) Release(key string) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	delete(registry.active, key)
}

// Active lists the keys currently held, sorted.
func (registry *Registry) Active() []string {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	keys := make([]string, 0, len(registry.active))
	for key := range registry.active {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
