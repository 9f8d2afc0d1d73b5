// Package energy provides a pure-Go vad.Classifier based on RMS energy with
// hysteresis. It needs no model files or native dependencies, which makes it
// the default backend; the asymmetric enter/exit thresholds keep the state
// from flickering at utterance boundaries.
package energy

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/oakmund/hearth/pkg/vad"
)

const (
	// defaultSpeechThreshold is the normalized RMS level at which a frame
	// counts toward entering speech.
	defaultSpeechThreshold = 0.015

	// defaultSilenceThreshold is the normalized RMS level below which a frame
	// counts toward leaving speech. Lower than the entry threshold so brief
	// dips inside a word do not end the speech run.
	defaultSilenceThreshold = 0.008

	// defaultSpeechFrames is the consecutive loud frames needed to enter
	// speech (~90 ms at 30 ms frames).
	defaultSpeechFrames = 3

	// defaultSilenceFrames is the consecutive quiet frames needed to leave
	// speech. Kept short; utterance-level endpointing applies its own longer
	// silence window on top.
	defaultSilenceFrames = 5
)

// Compile-time assertion that Classifier implements vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Option is a functional option for configuring a Classifier.
type Option func(*Classifier)

// WithThresholds overrides the enter/exit RMS thresholds, both normalized to
// [0, 1]. enter should be above exit for stable hysteresis.
func WithThresholds(enter, exit float64) Option {
	return func(c *Classifier) {
		if enter > 0 {
			c.speechThreshold = enter
		}
		if exit > 0 {
			c.silenceThreshold = exit
		}
	}
}

// WithFrameCounts overrides the consecutive-frame counts for entering and
// leaving speech.
func WithFrameCounts(enter, exit int) Option {
	return func(c *Classifier) {
		if enter > 0 {
			c.speechFrames = enter
		}
		if exit > 0 {
			c.silenceFrames = exit
		}
	}
}

// Classifier implements vad.Classifier with RMS energy hysteresis.
type Classifier struct {
	speechThreshold  float64
	silenceThreshold float64
	speechFrames     int
	silenceFrames    int
}

// New creates an energy Classifier with defaults tuned for 16 kHz 30 ms
// frames.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		speechThreshold:  defaultSpeechThreshold,
		silenceThreshold: defaultSilenceThreshold,
		speechFrames:     defaultSpeechFrames,
		silenceFrames:    defaultSilenceFrames,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewSession implements vad.Classifier.
func (c *Classifier) NewSession(cfg vad.Config) (vad.Session, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy: sample rate must be positive")
	}
	return &session{cfg: *c}, nil
}

type session struct {
	cfg Classifier

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// IsSpeech implements vad.Session.
func (s *session) IsSpeech(pcm []byte) (bool, error) {
	if len(pcm) < 2 {
		return false, errors.New("energy: frame too short")
	}
	level := rms(pcm)

	if s.inSpeech {
		if level < s.cfg.silenceThreshold {
			s.silenceCount++
			s.speechCount = 0
			if s.silenceCount >= s.cfg.silenceFrames {
				s.inSpeech = false
				s.silenceCount = 0
			}
		} else {
			s.silenceCount = 0
		}
	} else {
		if level >= s.cfg.speechThreshold {
			s.speechCount++
			s.silenceCount = 0
			if s.speechCount >= s.cfg.speechFrames {
				s.inSpeech = true
				s.speechCount = 0
			}
		} else {
			s.speechCount = 0
		}
	}
	return s.inSpeech, nil
}

// Reset implements vad.Session.
func (s *session) Reset() {
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

// Close implements vad.Session. The energy session holds no resources.
func (s *session) Close() error { return nil }

// rms computes the root-mean-square level of 16-bit LE PCM, normalized to
// [0, 1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
