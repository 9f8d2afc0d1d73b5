// Package mock provides in-memory test doubles for the audio package:
// a scripted capture device and a recording player that logs playback
// intervals so tests can assert on speaker-gate serialization.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oakmund/hearth/pkg/audio"
)

// Device is a scripted audio.Device. Frames pushed via Feed are delivered to
// the capture callback; Play calls are recorded and optionally delayed.
type Device struct {
	// StartErr, when non-nil, is returned by Start to simulate an
	// unavailable capture device.
	StartErr error

	// PlayErr, when non-nil, is returned by every Play call.
	PlayErr error

	// PlayDelay simulates playback duration; Play sleeps for this long
	// (interruptible by ctx) before returning.
	PlayDelay time.Duration

	mu      sync.Mutex
	onFrame func(audio.Frame)
	stopped bool
	plays   []PlayRecord
}

// PlayRecord captures one Play call with its wall-clock interval.
type PlayRecord struct {
	PCM        []byte
	SampleRate int
	Start      time.Time
	End        time.Time
}

// Start implements audio.Device.
func (d *Device) Start(onFrame func(audio.Frame)) error {
	if d.StartErr != nil {
		return d.StartErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFrame = onFrame
	return nil
}

// Stop implements audio.Device.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.onFrame = nil
	return nil
}

// Play implements audio.Device, recording the playback interval.
func (d *Device) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	start := time.Now()
	if d.PlayDelay > 0 {
		select {
		case <-time.After(d.PlayDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.PlayErr != nil {
		return d.PlayErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays = append(d.plays, PlayRecord{
		PCM:        pcm,
		SampleRate: sampleRate,
		Start:      start,
		End:        time.Now(),
	})
	return nil
}

// Feed delivers one frame to the registered capture callback. Returns an
// error if Start has not been called yet.
func (d *Device) Feed(f audio.Frame) error {
	d.mu.Lock()
	cb := d.onFrame
	d.mu.Unlock()
	if cb == nil {
		return errors.New("mock: device not started")
	}
	cb(f)
	return nil
}

// FeedPCM wraps raw PCM bytes in a frame and delivers it.
func (d *Device) FeedPCM(pcm []byte) error {
	return d.Feed(audio.Frame{Data: pcm, SampleRate: audio.SampleRate})
}

// Plays returns a copy of all recorded Play calls.
func (d *Device) Plays() []PlayRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PlayRecord, len(d.plays))
	copy(out, d.plays)
	return out
}

// Stopped reports whether Stop has been called.
func (d *Device) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}
