package knowledge

import "sync/atomic"

// Store provides lock-free access to the current Index and atomic
// replacement on hot reload. Readers always see a complete index, never
// a half-built one.
type Store struct {
	current atomic.Pointer[Index]
}

// NewStore wraps the initial index.
func NewStore(idx *Index) *Store {
	s := &Store{}
	s.current.Store(idx)
	return s
}

// Index returns the currently active index.
func (s *Store) Index() *Index {
	return s.current.Load()
}

// Swap replaces the active index, returning the previous one.
func (s *Store) Swap(idx *Index) *Index {
	return s.current.Swap(idx)
}
