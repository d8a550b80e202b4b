package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all registered game kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// Register adds a game kind. Panics on duplicate names.
func (r *Registry) Register(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := k.Info().Name
	if _, exists := r.kinds[name]; exists {
		panic(fmt.Sprintf("game %q already registered", name))
	}
	r.kinds[name] = k
}

// Get returns a game kind by name.
func (r *Registry) Get(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	return k, ok
}

// List returns info for all registered kinds, sorted by name.
func (r *Registry) List() []GameInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]GameInfo, 0, len(r.kinds))
	for _, k := range r.kinds {
		infos = append(infos, k.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
