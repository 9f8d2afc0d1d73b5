package wake_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/oakmund/hearth/pkg/wake"
	"github.com/oakmund/hearth/pkg/wake/mock"
)

// pcm encodes n int16 samples, each holding its index, so tests can verify
// that every sample reaches the scorer exactly once and in order.
func pcm(start, n int) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(start+i))
	}
	return out
}

func TestGateAccumulatesShortFramesIntoModelWindows(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{Window: 1280}
	g := wake.NewGate(scorer)

	// 480-sample capture frames: the third feed completes the first
	// 1280-sample window with 160 samples carried over.
	for i := 0; i < 3; i++ {
		if _, err := g.Feed(pcm(i*480, 480)); err != nil {
			t.Fatalf("Feed %d: %v", i, err)
		}
	}
	if len(scorer.Windows) != 1 {
		t.Fatalf("scored %d windows, want 1", len(scorer.Windows))
	}
	for i, s := range scorer.Windows[0] {
		if int(uint16(s)) != i {
			t.Fatalf("window sample %d = %d, want %d (skipped or duplicated audio)", i, uint16(s), i)
		}
	}
}

func TestGateFiresAtThresholdAndResetsScorer(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Scores: map[string]float64{"hey_jarvis": 0.2}},
			{Scores: map[string]float64{"hey_jarvis": 0.93}},
		},
	}
	g := wake.NewGate(scorer)

	ev, err := g.Feed(pcm(0, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev != nil {
		t.Fatalf("sub-threshold score produced event %+v", ev)
	}

	ev, err = g.Feed(pcm(4, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev == nil {
		t.Fatal("above-threshold score produced no event")
	}
	if ev.Keyword != "hey_jarvis" || ev.Score != 0.93 {
		t.Errorf("event = %+v, want hey_jarvis/0.93", ev)
	}
	if scorer.Resets != 1 {
		t.Errorf("scorer resets = %d, want 1 after detection", scorer.Resets)
	}
}

func TestGateReturnsAtMostOneEventPerFeed(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Scores: map[string]float64{"alexa": 0.8}},
			{Scores: map[string]float64{"alexa": 0.99}},
		},
	}
	g := wake.NewGate(scorer)

	// One feed spanning two windows, both above threshold.
	ev, err := g.Feed(pcm(0, 8))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev == nil {
		t.Fatal("no event")
	}
	if ev.Score != 0.8 {
		t.Errorf("event score = %v, want the first triggering window's 0.8", ev.Score)
	}
}

func TestGatePicksHighestScoringKeyword(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Scores: map[string]float64{"alexa": 0.6, "hey_jarvis": 0.85, "computer": 0.1}},
		},
	}
	g := wake.NewGate(scorer)

	ev, err := g.Feed(pcm(0, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev == nil || ev.Keyword != "hey_jarvis" {
		t.Fatalf("event = %+v, want hey_jarvis", ev)
	}
}

func TestGateCustomThreshold(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Scores: map[string]float64{"alexa": 0.55}},
		},
	}
	g := wake.NewGate(scorer, wake.WithThreshold(0.7))

	ev, err := g.Feed(pcm(0, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev != nil {
		t.Errorf("score below custom threshold produced event %+v", ev)
	}
}

func TestGateScoringErrorIsNotADetection(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Err: errors.New("model server unavailable")},
			{Scores: map[string]float64{"alexa": 0.9}},
		},
	}
	g := wake.NewGate(scorer)

	ev, err := g.Feed(pcm(0, 4))
	if err == nil {
		t.Fatal("expected error from failing scorer")
	}
	if ev != nil {
		t.Fatalf("error produced event %+v", ev)
	}

	// The gate keeps working after a failed window.
	ev, err = g.Feed(pcm(4, 4))
	if err != nil {
		t.Fatalf("Feed after error: %v", err)
	}
	if ev == nil {
		t.Fatal("no event after recovery")
	}
}

func TestGateResetClearsBufferedSamples(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{Window: 1280}
	g := wake.NewGate(scorer)

	// Buffer a partial window, then reset. The buffered samples must not
	// leak into the next window.
	if _, err := g.Feed(pcm(0, 480)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	g.Reset()
	if scorer.Resets != 1 {
		t.Errorf("scorer resets = %d, want 1", scorer.Resets)
	}

	for i := 0; i < 3; i++ {
		if _, err := g.Feed(pcm(1000+i*480, 480)); err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}
	if len(scorer.Windows) != 1 {
		t.Fatalf("scored %d windows, want 1", len(scorer.Windows))
	}
	if got := int(uint16(scorer.Windows[0][0])); got != 1000 {
		t.Errorf("window starts at sample %d, want 1000 (stale buffer survived Reset)", got)
	}
}

func TestGateScopedToConfiguredKeyword(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			// Another hosted model fires well above threshold.
			{Scores: map[string]float64{"alexa": 0.97}},
			// Both fire; only the configured keyword may win.
			{Scores: map[string]float64{"alexa": 0.97, "hey_jarvis": 0.81}},
		},
	}
	g := wake.NewGate(scorer, wake.WithKeyword("hey_jarvis"))

	ev, err := g.Feed(pcm(0, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev != nil {
		t.Fatalf("foreign keyword produced event %+v", ev)
	}

	ev, err = g.Feed(pcm(4, 4))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev == nil {
		t.Fatal("configured keyword over threshold produced no event")
	}
	if ev.Keyword != "hey_jarvis" || ev.Score != 0.81 {
		t.Errorf("event = %+v, want hey_jarvis at 0.81", ev)
	}
}

func TestGateKeepsDetectionWhenLaterWindowErrors(t *testing.T) {
	t.Parallel()
	scorer := &mock.Scorer{
		Window: 4,
		Script: []mock.Result{
			{Scores: map[string]float64{"hey_jarvis": 0.9}},
			{Err: errors.New("scorer offline")},
		},
	}
	g := wake.NewGate(scorer)

	// One feed spanning two windows: detection first, failure second.
	ev, err := g.Feed(pcm(0, 8))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if ev == nil || ev.Keyword != "hey_jarvis" {
		t.Fatalf("event = %+v, want the detection from the first window", ev)
	}
	if scorer.Resets != 1 {
		t.Errorf("scorer resets = %d, want 1 after a kept detection", scorer.Resets)
	}
}
