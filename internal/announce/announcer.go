// Package announce speaks expired timers. The announcer polls the timer
// store in the background and plays a spoken notice for every record that
// comes due, sharing the speaker gate with the turn coordinator so
// announcements never talk over a response.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oakmund/hearth/internal/observe"
	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/provider/tts"
	"github.com/oakmund/hearth/pkg/store/timers"
)

// DefaultInterval is how often the store is polled for due timers.
const DefaultInterval = time.Second

// Announcer polls a timer store and speaks every due record exactly once.
type Announcer struct {
	store  timers.Store
	tts    tts.Provider
	output *audio.Output

	logger   *slog.Logger
	metrics  *observe.Metrics
	interval time.Duration
	now      func() time.Time
}

// Option configures an [Announcer].
type Option func(*Announcer)

// WithLogger attaches a logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Announcer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics attaches the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Announcer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(a *Announcer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Announcer) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Announcer over store, speaking through synth and out.
func New(store timers.Store, synth tts.Provider, out *audio.Output, opts ...Option) *Announcer {
	a := &Announcer{
		store:    store,
		tts:      synth,
		output:   out,
		logger:   slog.Default(),
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Run polls until ctx is cancelled. Poll and playback failures are logged
// and the loop continues; a failed announcement is not retried, the record
// was already popped.
func (a *Announcer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

func (a *Announcer) poll(ctx context.Context) {
	due, err := a.store.PopExpired(ctx, a.now())
	if err != nil {
		a.logger.Error("timer poll failed", "error", err)
		return
	}

	for _, rec := range due {
		message := Message(rec.Label)
		a.logger.Info("timer due", "id", rec.ID, "label", rec.Label)

		if a.output.Busy() {
			a.logger.Info("speaker busy, announcement will wait", "id", rec.ID)
		}
		if err := a.speak(ctx, message); err != nil {
			a.logger.Error("announcement failed", "id", rec.ID, "error", err)
			continue
		}
		a.metrics.Announcements.Add(ctx, 1)
	}
}

func (a *Announcer) speak(ctx context.Context, message string) error {
	result, err := a.tts.Synthesize(ctx, message)
	if err != nil {
		return fmt.Errorf("announce: synthesize: %w", err)
	}
	if err := a.output.Play(ctx, result.PCM, result.SampleRate); err != nil {
		return fmt.Errorf("announce: playback: %w", err)
	}
	return nil
}

// Message renders the spoken notice for a timer with the given label.
func Message(label string) string {
	if label != "" {
		return fmt.Sprintf("Your %s timer is done.", label)
	}
	return "Your timer is done."
}
