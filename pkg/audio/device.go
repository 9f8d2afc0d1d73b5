// Package audio defines the capture and playback primitives for Hearth.
//
// The two central abstractions are:
//
//   - [Device] — the narrow hardware boundary. Implementations wrap a real
//     capture/playback backend (ALSA, CoreAudio, a network bridge, …) and are
//     provided by adapter packages; tests use the mock sub-package.
//   - [Channel] — a bounded, goroutine-safe frame queue between the device's
//     capture callback and the consuming turn loop. This queue is the only
//     place frame data crosses a scheduling boundary.
//
// Playback contention is resolved by [Output], a mutual-exclusion gate over
// the speaker: any component that wants to produce audible speech plays
// through the same Output and therefore never overlaps another speaker.
package audio

import "context"

// Device is the hardware boundary for one microphone/speaker pair.
//
// Implementations must be safe for concurrent use of Play against an active
// capture; Start/Stop are called from a single goroutine by [Channel].
type Device interface {
	// Start opens the capture device and begins delivering frames to onFrame.
	// The callback is invoked from the device's own capture schedule and must
	// never block. Returns an error if the device cannot be opened — callers
	// treat this as fatal.
	Start(onFrame func(Frame)) error

	// Stop closes the capture device and drains in-flight buffers. Safe to
	// call more than once.
	Stop() error

	// Play writes pcm (16-bit signed LE) to the output device at sampleRate
	// and blocks until playback completes or fails.
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}
