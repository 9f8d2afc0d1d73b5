// Package memstore provides an in-memory timer store for single-process
// deployments and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oakmund/hearth/pkg/store/timers"
)

// Compile-time assertion that Store implements timers.Store.
var _ timers.Store = (*Store)(nil)

// Store is an in-memory timers.Store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	recs map[string]timers.Record
}

// New creates an empty Store.
func New() *Store {
	return &Store{recs: make(map[string]timers.Record)}
}

// Create implements timers.Store.
func (s *Store) Create(ctx context.Context, rec timers.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return fmt.Errorf("timer store: duplicate id %q", rec.ID)
	}
	s.recs[rec.ID] = rec
	return nil
}

// List implements timers.Store.
func (s *Store) List(ctx context.Context) ([]timers.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]timers.Record, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

// Update implements timers.Store.
func (s *Store) Update(ctx context.Context, id string, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("timer store: no timer with id %q", id)
	}
	r.FireAt = fireAt
	s.recs[id] = r
	return nil
}

// Cancel implements timers.Store.
func (s *Store) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return fmt.Errorf("timer store: no timer with id %q", id)
	}
	delete(s.recs, id)
	return nil
}

// PopExpired implements timers.Store.
func (s *Store) PopExpired(ctx context.Context, now time.Time) ([]timers.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []timers.Record
	for id, r := range s.recs {
		if !r.FireAt.After(now) {
			out = append(out, r)
			delete(s.recs, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}
