package breaker

import "sync"

// Store persists breaker state by name.
type Store interface {
	// Load returns the state of name, or Initial(name) when none is stored.
	Load(name string) (State, error)

	// CompareAndSwap stores next if the stored version equals expected.
	// A missing entry has version 0. It reports whether the swap happened.
	CompareAndSwap(name string, expected uint64, next State) (bool, error)
}

// MemoryStore is a process-local Store. State is lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load implements Store.
func (m *MemoryStore) Load(name string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[name]; ok {
		return s, nil
	}
	return Initial(name), nil
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(name string, expected uint64, next State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.states[name]
	var version uint64
	if ok {
		version = current.Version
	}
	if version != expected {
		return false, nil
	}
	m.states[name] = next
	return true, nil
}
