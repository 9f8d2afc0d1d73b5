// Package mock provides a scripted wake.Scorer for tests.
package mock

import (
	"github.com/oakmund/hearth/pkg/wake"
)

// Compile-time assertion that Scorer implements wake.Scorer.
var _ wake.Scorer = (*Scorer)(nil)

// Scorer is a scripted wake.Scorer. Each Score call pops the next entry from
// Script; when the script is exhausted it returns empty scores. Windows are
// recorded for sample-accounting assertions.
type Scorer struct {
	// Window is the value returned by FrameSamples.
	Window int

	// Script holds the per-call results, consumed in order.
	Script []Result

	// Windows records a copy of every scored window.
	Windows [][]int16

	// Resets counts Reset calls.
	Resets int

	next int
}

// Result is one scripted Score outcome.
type Result struct {
	Scores map[string]float64
	Err    error
}

// FrameSamples implements wake.Scorer.
func (s *Scorer) FrameSamples() int { return s.Window }

// Score implements wake.Scorer.
func (s *Scorer) Score(samples []int16) (map[string]float64, error) {
	cp := make([]int16, len(samples))
	copy(cp, samples)
	s.Windows = append(s.Windows, cp)

	if s.next >= len(s.Script) {
		return map[string]float64{}, nil
	}
	r := s.Script[s.next]
	s.next++
	return r.Scores, r.Err
}

// Reset implements wake.Scorer.
func (s *Scorer) Reset() { s.Resets++ }
