// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/oakmund/hearth/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider is a scripted tts.Provider. Every call returns PCM (or Err) and
// records the synthesized text.
type Provider struct {
	// PCM is the audio returned by every call. Defaults to a small non-empty
	// buffer when nil.
	PCM []byte

	// SampleRate defaults to 16000 when zero.
	SampleRate int

	// Err, when non-nil, is returned instead.
	Err error

	mu    sync.Mutex
	texts []string
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	pcm := p.PCM
	if pcm == nil {
		pcm = []byte{0, 0, 0, 0}
	}
	rate := p.SampleRate
	if rate == 0 {
		rate = 16000
	}
	return &tts.Result{PCM: pcm, SampleRate: rate}, nil
}

// Texts returns every synthesized text, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
