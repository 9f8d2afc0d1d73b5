// Package tts defines the Provider interface for text-to-speech backends.
//
// The voice pipeline speaks complete responses, so the boundary is batch
// synthesis: one text in, one finished PCM buffer out. Implementations that
// stream internally collect the stream before returning.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Result is one finished synthesis.
type Result struct {
	// PCM is 16-bit signed little-endian mono audio.
	PCM []byte

	// SampleRate is the PCM sample rate in Hz. Backends differ (16000,
	// 22050, 24000); the playback device is told per call.
	SampleRate int
}

// Provider is the abstraction over any speech-synthesis backend.
type Provider interface {
	// Synthesize converts text into speech audio. Returns an error if the
	// backend fails or ctx is cancelled first.
	Synthesize(ctx context.Context, text string) (*Result, error)
}
