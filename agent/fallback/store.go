package fallback

import "sync"

// Store is the in-process container an adapter degrades to when its
// remote backend fails.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string) bool
	// Keys returns keys in first-insertion order.
	Keys() []string
}

var _ Store[string] = (*Map[string])(nil)

type Map[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	order  []string
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Map[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

func (m *Map[V]) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *Map[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
