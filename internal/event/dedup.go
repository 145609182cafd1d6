package event

import "sync"

// Set is a caller-owned dedup scope. The enqueue pipeline never creates
// global dedup state: callers decide the set's lifetime and breadth — one
// shared set for process-wide dedup, none for no dedup at all.
type Set struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewSet() *Set {
	return &Set{keys: make(map[string]struct{})}
}

// CheckAndAdd records key and reports whether it was newly added. The check
// and the insert happen under one lock, so two concurrent callers racing on
// the same key cannot both observe "not present".
func (s *Set) CheckAndAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key has been recorded.
func (s *Set) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of recorded keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
