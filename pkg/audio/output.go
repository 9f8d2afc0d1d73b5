package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Player is the playback half of the device boundary. [Device] satisfies it;
// tests inject recording fakes.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Output is the mutual-exclusion gate over the speaker. The turn coordinator
// and the timer announcer both speak through the same Output, so playback
// from the two producers never interleaves.
//
// The lock is held for exactly one playback call and released on every exit
// path, including playback failure.
type Output struct {
	mu     sync.Mutex
	player Player

	// waitHook, when set, receives the time spent waiting to acquire the
	// gate. Used to feed the speaker-contention metric.
	waitHook func(time.Duration)
}

// NewOutput creates an Output that plays through p.
func NewOutput(p Player) *Output {
	return &Output{player: p}
}

// OnWait registers fn to receive the gate acquisition wait time of every
// Play call. Only one hook may be registered; later calls replace it.
func (o *Output) OnWait(fn func(time.Duration)) {
	o.waitHook = fn
}

// Play acquires the speaker, plays pcm to completion, and releases the
// speaker. It blocks while another playback is in progress.
func (o *Output) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	start := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.waitHook != nil {
		o.waitHook(time.Since(start))
	}

	if err := o.player.Play(ctx, pcm, sampleRate); err != nil {
		return fmt.Errorf("audio: playback: %w", err)
	}
	return nil
}

// Busy reports whether a playback is currently holding the gate. Best-effort:
// the answer may be stale by the time the caller acts on it, so it is only
// used for logging.
func (o *Output) Busy() bool {
	if o.mu.TryLock() {
		o.mu.Unlock()
		return false
	}
	return true
}
