package history

import (
	"sync"
)

type fifo[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	order []K
	data  map[K]V
}

// Set remembers the most recent keys up to a limit, evicting the oldest first.
type Set[K comparable] struct {
	fifo[K, struct{}]
}

func NewSet[K comparable](limit int) *Set[K] {
	s := new(Set[K])
	s.init(limit)
	return s
}

// Add reports whether key was not already present.
func (s *Set[K]) Add(key K) bool {
	return s.fifo.Add(key, struct{}{})
}

// Map is a bounded Set carrying a value per key.
type Map[K comparable, V any] struct {
	fifo[K, V]
}

func NewMap[K comparable, V any](limit int) *Map[K, V] {
	m := new(Map[K, V])
	m.init(limit)
	return m
}

func (h *fifo[K, V]) init(limit int) {
	if limit <= 0 {
		limit = 1
	}
	h.limit = limit
	h.order = make([]K, 0, limit)
	h.data = make(map[K]V, limit)
}

func (h *fifo[K, V]) Add(key K, value V) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.data[key]; ok {
		return false
	}

	if len(h.order) >= h.limit {
		pop := h.order[0]
		h.order = h.order[1:]
		delete(h.data, pop)
	}

	h.order = append(h.order, key)
	h.data[key] = value
	return true
}

func (h *fifo[K, V]) Get(key K) (V, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.data[key]
	return v, ok
}

func (h *fifo[K, V]) Has(key K) bool {
	_, ok := h.Get(key)
	return ok
}

func (h *fifo[K, V]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

func (h *fifo[K, V]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.order = h.order[:0]
	clear(h.data)
}
