package breaker

import (
	"slices"
	"strings"
	"sync"
)

// Registry hands out named breakers that share one Store.
type Registry struct {
	mu       sync.Mutex
	store    Store
	opts     []Option
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers persist in store.
// A nil store uses a shared MemoryStore. opts apply to every breaker
// created by the registry, before any per-breaker config.
func NewRegistry(store Store, opts ...Option) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:    store,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it with cfg on first use.
// Later calls return the existing breaker and ignore cfg.
func (r *Registry) Get(name string, cfg Config) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b, nil
	}

	opts := append(slices.Clone(r.opts), WithStore(r.store), WithConfig(cfg))
	b, err := New(name, opts...)
	if err != nil {
		return nil, err
	}
	r.breakers[name] = b
	return b, nil
}

// Snapshots returns the state of every breaker created so far, sorted by name.
func (r *Registry) Snapshots() []State {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	states := make([]State, 0, len(breakers))
	for _, b := range breakers {
		states = append(states, b.Snapshot())
	}
	slices.SortFunc(states, func(a, b State) int {
		return strings.Compare(a.Name, b.Name)
	})
	return states
}
