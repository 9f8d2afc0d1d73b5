// Package mock provides a scripted vad.Classifier for tests.
package mock

import (
	"github.com/oakmund/hearth/pkg/vad"
)

// Compile-time assertions.
var (
	_ vad.Classifier = (*Classifier)(nil)
	_ vad.Session    = (*Session)(nil)
)

// Classifier hands out its pre-built Session to every NewSession call.
type Classifier struct {
	// Session is returned by NewSession. If nil, a fresh empty Session is
	// returned instead.
	Session *Session

	// NewSessionErr, when non-nil, is returned by NewSession.
	NewSessionErr error
}

// NewSession implements vad.Classifier.
func (c *Classifier) NewSession(cfg vad.Config) (vad.Session, error) {
	if c.NewSessionErr != nil {
		return nil, c.NewSessionErr
	}
	if c.Session != nil {
		return c.Session, nil
	}
	return &Session{}, nil
}

// Session is a scripted vad.Session. Each IsSpeech call pops the next entry
// from Script; when the script is exhausted it reports silence.
type Session struct {
	// Script holds per-call results, consumed in order.
	Script []Result

	// Frames records a copy of every classified frame.
	Frames [][]byte

	// Resets counts Reset calls.
	Resets int

	// Closed reports whether Close has been called.
	Closed bool

	next int
}

// Result is one scripted IsSpeech outcome.
type Result struct {
	Speech bool
	Err    error
}

// IsSpeech implements vad.Session.
func (s *Session) IsSpeech(pcm []byte) (bool, error) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.Frames = append(s.Frames, cp)

	if s.next >= len(s.Script) {
		return false, nil
	}
	r := s.Script[s.next]
	s.next++
	return r.Speech, r.Err
}

// Reset implements vad.Session.
func (s *Session) Reset() { s.Resets++ }

// Close implements vad.Session.
func (s *Session) Close() error {
	s.Closed = true
	return nil
}
