// Package memstore provides an in-memory history store for single-process
// deployments and tests.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/oakmund/hearth/pkg/store/history"
)

// Compile-time assertion that Store implements history.Store.
var _ history.Store = (*Store)(nil)

// Store is an in-memory history.Store with the same retention semantics as
// the PostgreSQL implementation. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	turns []history.Turn
	keep  int
}

// Option configures a [Store].
type Option func(*Store)

// WithKeep overrides the retention window. Defaults to history.DefaultKeep.
func WithKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{keep: history.DefaultKeep}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save implements history.Store.
func (s *Store) Save(ctx context.Context, turn history.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.keep; over > 0 {
		s.turns = append([]history.Turn(nil), s.turns[over:]...)
	}
	return nil
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.turns) {
		limit = len(s.turns)
	}
	out := make([]history.Turn, limit)
	copy(out, s.turns[len(s.turns)-limit:])
	return out, nil
}

// Search implements history.Store.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]history.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = s.keep
	}
	q := strings.ToLower(query)
	var out []history.Turn
	for _, t := range s.turns {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(t.UserInput), q) ||
			strings.Contains(strings.ToLower(t.Response), q) {
			out = append(out, t)
		}
	}
	return out, nil
}
