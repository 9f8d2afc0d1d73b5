// Package vad defines the voice-activity-detection boundary used by the
// utterance endpointer. A Classifier creates per-capture sessions that decide,
// frame by frame, whether the speaker is talking.
package vad

// Config describes the audio format a session will classify.
type Config struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int

	// FrameSizeMs is the duration of each frame passed to IsSpeech, in
	// milliseconds. Implementations may require specific values.
	FrameSizeMs int
}

// Session is one voice-activity classification pass. Implementations may keep
// hysteresis state between calls; Reset clears it for the next capture.
//
// Sessions are not safe for concurrent use.
type Session interface {
	// IsSpeech classifies one frame of 16-bit signed little-endian PCM.
	IsSpeech(pcm []byte) (bool, error)

	// Reset clears any streaming state so the session can classify a fresh
	// capture.
	Reset()

	// Close releases session resources. Calling Close more than once is safe.
	Close() error
}

// Classifier is the abstraction over any VAD backend.
type Classifier interface {
	// NewSession creates a classification session for the given audio format.
	NewSession(cfg Config) (Session, error)
}
