package endpoint_test

import (
	"errors"
	"testing"
	"time"

	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/endpoint"
	"github.com/oakmund/hearth/pkg/vad/mock"
)

// reader serves pre-queued frames and then errors, so a test that reads past
// its script fails loudly instead of hanging.
type reader struct {
	frames []audio.Frame
	next   int
}

func (r *reader) Read(timeout time.Duration) (audio.Frame, error) {
	if r.next >= len(r.frames) {
		return audio.Frame{}, errors.New("script exhausted")
	}
	f := r.frames[r.next]
	r.next++
	return f, nil
}

// feed builds a reader with n frames of FrameBytes each.
func feed(n int) *reader {
	r := &reader{}
	for i := 0; i < n; i++ {
		r.frames = append(r.frames, audio.Frame{Data: make([]byte, audio.FrameBytes)})
	}
	return r
}

// script builds a VAD session from a speech/silence pattern.
func script(pattern ...bool) *mock.Session {
	s := &mock.Session{}
	for _, v := range pattern {
		s.Script = append(s.Script, mock.Result{Speech: v})
	}
	return s
}

func TestCaptureEndsOnSustainedSilence(t *testing.T) {
	t.Parallel()
	// Silence threshold of 3 frames: 4 speech frames then 3 silent ones.
	e := endpoint.New(endpoint.WithSilence(3 * audio.FrameDuration))

	session := script(true, true, true, true, false, false, false)
	pcm, err := e.Capture(feed(20), session)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if want := 7 * audio.FrameBytes; len(pcm) != want {
		t.Errorf("utterance = %d bytes, want %d (all frames appended, stop after 3rd silent)", len(pcm), want)
	}
}

func TestCaptureNeverExceedsMaxDuration(t *testing.T) {
	t.Parallel()
	e := endpoint.New(
		endpoint.WithSilence(3*audio.FrameDuration),
		endpoint.WithMaxDuration(10*audio.FrameDuration),
	)

	// Continuous speech: only the duration bound can stop capture.
	session := &mock.Session{}
	for i := 0; i < 50; i++ {
		session.Script = append(session.Script, mock.Result{Speech: true})
	}
	pcm, err := e.Capture(feed(50), session)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if want := 10 * audio.FrameBytes; len(pcm) != want {
		t.Errorf("utterance = %d bytes, want %d (max-duration bound)", len(pcm), want)
	}
}

func TestCaptureLeadingSilenceGuard(t *testing.T) {
	t.Parallel()
	e := endpoint.New(
		endpoint.WithSilence(3*audio.FrameDuration),
		endpoint.WithMaxDuration(10*audio.FrameDuration),
	)

	// Total silence from the start: the guard requires more frames than the
	// silence threshold before stopping.
	pcm, err := e.Capture(feed(50), script())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if min := 3 * audio.FrameBytes; len(pcm) <= min {
		t.Errorf("utterance = %d bytes, want > %d (stopped on leading silence)", len(pcm), min)
	}
}

func TestCaptureSpeechResetsSilenceCount(t *testing.T) {
	t.Parallel()
	e := endpoint.New(endpoint.WithSilence(3 * audio.FrameDuration))

	// Two silent frames, one speech frame, then three silent: the mid-stream
	// speech frame must reset the counter.
	session := script(true, false, false, true, false, false, false)
	pcm, err := e.Capture(feed(20), session)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if want := 7 * audio.FrameBytes; len(pcm) != want {
		t.Errorf("utterance = %d bytes, want %d", len(pcm), want)
	}
}

func TestCaptureClassifierErrorCountsAsSilence(t *testing.T) {
	t.Parallel()
	e := endpoint.New(endpoint.WithSilence(3 * audio.FrameDuration))

	session := &mock.Session{Script: []mock.Result{
		{Speech: true},
		{Err: errors.New("backend gone")},
		{Err: errors.New("backend gone")},
		{Err: errors.New("backend gone")},
	}}
	pcm, err := e.Capture(feed(20), session)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if want := 4 * audio.FrameBytes; len(pcm) != want {
		t.Errorf("utterance = %d bytes, want %d (errors treated as silence)", len(pcm), want)
	}
}

func TestCaptureSurfacesReadFailure(t *testing.T) {
	t.Parallel()
	e := endpoint.New()
	if _, err := e.Capture(feed(0), script()); err == nil {
		t.Fatal("Capture succeeded with a failing reader")
	}
}

// flakyReader injects read timeouts between real frames.
type flakyReader struct {
	inner    *reader
	timeouts int
	reads    int
}

func (r *flakyReader) Read(timeout time.Duration) (audio.Frame, error) {
	r.reads++
	// Every other read times out until the timeout budget is spent.
	if r.timeouts > 0 && r.reads%2 == 1 {
		r.timeouts--
		return audio.Frame{}, audio.ErrReadTimeout
	}
	return r.inner.Read(timeout)
}

func TestCaptureToleratesReadTimeouts(t *testing.T) {
	t.Parallel()
	e := endpoint.New(
		endpoint.WithSilence(3*audio.FrameDuration),
		endpoint.WithMaxDuration(20*audio.FrameDuration),
	)
	r := &flakyReader{inner: feed(7), timeouts: 4}

	pcm, err := e.Capture(r, script(true, true, true, true, false, false, false))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(pcm) != 7*audio.FrameBytes {
		t.Errorf("captured %d bytes, want all 7 frames despite timeouts", len(pcm))
	}
}
