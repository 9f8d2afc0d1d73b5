// Package endpoint detects the end of a spoken utterance. After the wake
// gate triggers, the Endpointer consumes capture frames, classifies each one
// with a voice-activity session, and stops on sustained silence or at the
// maximum capture duration.
package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/vad"
)

const (
	// DefaultSilence is the sustained-silence duration that ends an
	// utterance.
	DefaultSilence = 500 * time.Millisecond

	// DefaultMaxDuration bounds total capture so recording always
	// terminates, even under continuous speech or total silence.
	DefaultMaxDuration = 30 * time.Second

	// readTimeout bounds each frame read so a stalled capture device cannot
	// hang the turn.
	readTimeout = time.Second
)

// FrameReader is the capture-side boundary. [audio.Channel] satisfies it.
type FrameReader interface {
	Read(timeout time.Duration) (audio.Frame, error)
}

// Endpointer captures one utterance at a time. Both thresholds are expressed
// internally in frame counts derived from the fixed frame duration, so the
// decision is deterministic in the number of frames seen, not wall clock.
type Endpointer struct {
	silenceFrames int
	maxFrames     int
}

// Option configures an [Endpointer].
type Option func(*Endpointer)

// WithSilence sets the sustained-silence duration that ends capture.
func WithSilence(d time.Duration) Option {
	return func(e *Endpointer) {
		if d > 0 {
			e.silenceFrames = framesIn(d)
		}
	}
}

// WithMaxDuration sets the total capture bound.
func WithMaxDuration(d time.Duration) Option {
	return func(e *Endpointer) {
		if d > 0 {
			e.maxFrames = framesIn(d)
		}
	}
}

// New creates an Endpointer with the default silence and duration bounds.
func New(opts ...Option) *Endpointer {
	e := &Endpointer{
		silenceFrames: framesIn(DefaultSilence),
		maxFrames:     framesIn(DefaultMaxDuration),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Capture reads frames from r until end-of-utterance and returns the
// concatenated raw PCM. Every frame, speech or not, is appended to the
// utterance; the consecutive-silence counter resets on any speech frame.
//
// Capture stops when the consecutive-silence count reaches the silence
// threshold and more frames than the threshold have been collected (the
// leading-silence guard, so capture does not end before any speech could
// have been recorded), or when the total frame count reaches the maximum
// bound. Classifier errors are treated as non-speech so a flaky backend
// degrades into earlier endpointing instead of an aborted turn.
func (e *Endpointer) Capture(r FrameReader, session vad.Session) ([]byte, error) {
	var (
		utterance []byte
		collected int
		silence   int
	)

	for collected < e.maxFrames {
		f, err := r.Read(readTimeout)
		if errors.Is(err, audio.ErrReadTimeout) {
			// A quiet queue is not the end of the utterance; keep
			// waiting for the next frame.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("endpoint: read frame: %w", err)
		}

		utterance = append(utterance, f.Data...)
		collected++

		speech, err := session.IsSpeech(f.Data)
		if err != nil {
			speech = false
		}
		if speech {
			silence = 0
		} else {
			silence++
		}

		if silence >= e.silenceFrames && collected > e.silenceFrames {
			break
		}
	}
	return utterance, nil
}

// framesIn converts a duration to a count of capture frames, rounding up so
// a bound is never undershot.
func framesIn(d time.Duration) int {
	n := int((d + audio.FrameDuration - 1) / audio.FrameDuration)
	if n < 1 {
		n = 1
	}
	return n
}
