// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider converts one complete captured utterance into text. The
// voice pipeline endpoints utterances itself, so the boundary is batch
// transcription of a finished WAV buffer rather than streaming recognition.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any transcription backend.
type Provider interface {
	// Transcribe converts a complete WAV recording (16-bit PCM) into text.
	// The returned text may be empty when the recording contains no
	// recognizable speech.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}
