// Package query implements the filter evaluator, sort comparator, and
// query-changes delta reconstruction shared by every /query,
// /queryChanges handler (spec §4.6, §4.7).
package query

import "sync"

// Storage is the per-query scratch a domain's predicate/sort-key
// functions can use to memoize derived data (thread-keyword aggregation,
// full mailbox-path names, external search hits) so it is computed once
// per query regardless of row count, not once per row.
type Storage struct {
	mu    sync.Mutex
	cache map[string]interface{}
}

// NewStorage creates an empty scratch for one query.
func NewStorage() *Storage {
	return &Storage{cache: make(map[string]interface{})}
}

// GetOrCompute returns the cached value for key, computing and storing it
// via compute on first access. compute runs at most once per key per
// Storage instance, even under concurrent callers.
func (s *Storage) GetOrCompute(key string, compute func() interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[key]; ok {
		return v
	}
	v := compute()
	s.cache[key] = v
	return v
}
