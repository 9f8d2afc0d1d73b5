// Package resilience keeps the assistant answering when a provider backend
// degrades. A [Breaker] stops hammering a backend that keeps failing, and the
// provider wrappers in this package compose a primary and fallback backend of
// the same kind behind the ordinary provider interfaces, so the rest of the
// pipeline never knows a failover happened.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker is open
// and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a [Breaker]'s operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through after the
	// reset timeout; their outcome decides between closed and open.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget in the half-open state. Default: 3.
	HalfOpenMax int

	// Logger receives state-transition messages. Default: slog.Default().
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker (closed → open → half-open).
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	logger       *slog.Logger

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	halfOpenFails int
}

// NewBreaker creates a Breaker from cfg, filling defaults for zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		logger:       cfg.Logger,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it. Open state returns
// [ErrCircuitOpen] without calling fn; half-open admits up to the probe
// budget.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenFails = 0
		b.logger.Info("circuit breaker half-open", "name", b.name)

	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = time.Now()

	if probing {
		// Any failed probe re-opens immediately.
		b.halfOpenFails++
		b.state = StateOpen
		b.failures = b.maxFailures
		b.logger.Warn("circuit breaker re-opened", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.state = StateOpen
		b.logger.Warn("circuit breaker opened",
			"name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.halfOpenCalls-b.halfOpenFails >= b.halfOpenMax {
			b.state = StateClosed
			b.failures = 0
			b.halfOpenCalls = 0
			b.halfOpenFails = 0
			b.logger.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports half-open; the actual transition happens on the next
// Execute.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenFails = 0
}
