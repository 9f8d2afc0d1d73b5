package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Group] fails or sits
// behind an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// GroupConfig configures the per-entry breaker created for each provider in
// a [Group].
type GroupConfig struct {
	Breaker BreakerConfig
	Logger  *slog.Logger
}

type groupEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group orders a primary and any number of fallback instances of one
// provider type. Calls go to the first entry whose breaker admits them; a
// failure moves on to the next entry.
type Group[T any] struct {
	entries []groupEntry[T]
	cfg     GroupConfig
	logger  *slog.Logger
}

// NewGroup creates a Group with primary as the first entry.
func NewGroup[T any](primary T, primaryName string, cfg GroupConfig) *Group[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	g := &Group[T]{cfg: cfg, logger: cfg.Logger}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a fallback provider, tried after everything already
// registered.
func (g *Group[T]) AddFallback(name string, fallback T) {
	g.add(name, fallback)
}

func (g *Group[T]) add(name string, value T) {
	bc := g.cfg.Breaker
	bc.Name = name
	if bc.Logger == nil {
		bc.Logger = g.logger
	}
	g.entries = append(g.entries, groupEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bc),
	})
}

// Execute tries fn against each entry in order until one succeeds. Entries
// with an open breaker are skipped. When every entry fails, the last error
// is wrapped in [ErrAllFailed].
func (g *Group[T]) Execute(fn func(T) error) error {
	_, err := Call(g, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// Call is [Group.Execute] for functions that return a value. Package-level
// because methods cannot add type parameters.
func Call[T, R any](g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		entry := &g.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			g.logger.Debug("provider skipped, circuit open", "provider", entry.name)
		} else {
			g.logger.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
