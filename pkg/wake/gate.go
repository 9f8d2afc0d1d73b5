// Package wake turns a stream of microphone frames into discrete wake-word
// events. The acoustic model itself lives behind the [Scorer] interface; the
// gate owns buffering, thresholding and scorer lifecycle.
package wake

import (
	"encoding/binary"
	"fmt"
)

// DefaultThreshold is the activation confidence below which scores are
// ignored.
const DefaultThreshold = 0.5

// Event describes one wake-word detection.
type Event struct {
	// Keyword is the model name of the detected wake word.
	Keyword string
	// Score is the model confidence in [0, 1].
	Score float64
}

// Scorer is the acoustic wake-word model boundary. Implementations score
// fixed-size sample windows and keep internal streaming state between calls.
type Scorer interface {
	// FrameSamples returns the exact window size, in samples, the model
	// scores per call.
	FrameSamples() int

	// Score runs the model over one window and returns per-keyword
	// confidences. The window length is always exactly FrameSamples.
	Score(samples []int16) (map[string]float64, error)

	// Reset clears the model's streaming state so a fresh detection pass
	// can begin.
	Reset()
}

// Gate accumulates incoming capture frames, feeds the scorer in exact model
// windows, and reports at most one detection per Feed call. After a
// detection the scorer is reset so residual activation from the trigger
// cannot fire again on the next utterance.
//
// Gate is not safe for concurrent use; the listening loop is its only caller.
type Gate struct {
	scorer    Scorer
	threshold float64
	keyword   string

	buf []int16
}

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithThreshold overrides the detection threshold. Values outside (0, 1] are
// ignored.
func WithThreshold(v float64) GateOption {
	return func(g *Gate) {
		if v > 0 && v <= 1 {
			g.threshold = v
		}
	}
}

// WithKeyword restricts detection to one keyword. Scores for every other
// keyword the model hosts are ignored. Empty (the default) accepts any
// keyword over the threshold.
func WithKeyword(name string) GateOption {
	return func(g *Gate) { g.keyword = name }
}

// NewGate creates a Gate over scorer with the default threshold.
func NewGate(scorer Scorer, opts ...GateOption) *Gate {
	g := &Gate{
		scorer:    scorer,
		threshold: DefaultThreshold,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Feed consumes one capture frame worth of PCM bytes and returns a detection
// event if any buffered window crossed the threshold. Every sample is scored
// exactly once: short frames accumulate until a full model window is
// available, and leftover samples stay buffered for the next call.
//
// At most one event is returned per call even if several windows trigger;
// the highest-confidence keyword of the first triggering window wins.
func (g *Gate) Feed(pcm []byte) (*Event, error) {
	g.buf = append(g.buf, decodeSamples(pcm)...)

	window := g.scorer.FrameSamples()
	if window <= 0 {
		return nil, fmt.Errorf("wake: scorer reports invalid window size %d", window)
	}

	var event *Event
	for len(g.buf) >= window {
		chunk := g.buf[:window]
		g.buf = g.buf[window:]

		scores, err := g.scorer.Score(chunk)
		if err != nil {
			if event != nil {
				// A detection already happened this call; a later
				// window failing to score must not erase it.
				break
			}
			// A failed scoring pass is a missed window, not a fatal
			// condition; the stream keeps flowing.
			return nil, fmt.Errorf("wake: score window: %w", err)
		}
		if event != nil {
			continue
		}
		if kw, score, ok := g.pick(scores); ok {
			event = &Event{Keyword: kw, Score: score}
		}
	}

	if event != nil {
		g.scorer.Reset()
		g.buf = g.buf[:0]
	}
	return event, nil
}

// Reset clears the accumulation buffer and the scorer's streaming state.
// Called when the coordinator re-enters the wake-listening state.
func (g *Gate) Reset() {
	g.buf = g.buf[:0]
	g.scorer.Reset()
}

// pick returns the highest score at or above the threshold, restricted to
// the configured keyword when one is set.
func (g *Gate) pick(scores map[string]float64) (string, float64, bool) {
	if g.keyword != "" {
		s, ok := scores[g.keyword]
		if !ok || s < g.threshold {
			return "", 0, false
		}
		return g.keyword, s, true
	}
	var (
		bestKw    string
		bestScore float64
		found     bool
	)
	for kw, s := range scores {
		if s >= g.threshold && (!found || s > bestScore) {
			bestKw, bestScore, found = kw, s, true
		}
	}
	return bestKw, bestScore, found
}

func decodeSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
