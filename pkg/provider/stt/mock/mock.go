// Package mock provides a scripted stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/oakmund/hearth/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a scripted stt.Provider returning a fixed result and recording
// every call.
type Provider struct {
	// Text is the transcription returned by every call.
	Text string

	// Err, when non-nil, is returned instead.
	Err error

	mu    sync.Mutex
	calls [][]byte
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	p.mu.Lock()
	cp := make([]byte, len(wav))
	copy(cp, wav)
	p.calls = append(p.calls, cp)
	p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// Calls returns the recorded WAV buffers, in call order.
func (p *Provider) Calls() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.calls))
	copy(out, p.calls)
	return out
}
