package resilience

import (
	"context"

	"github.com/oakmund/hearth/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across multiple
// synthesis backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *Group[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a TTSFallback preferring primary.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg GroupConfig) *TTSFallback {
	return &TTSFallback{group: NewGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional synthesis provider.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text using the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	return Call(f.group, func(p tts.Provider) (*tts.Result, error) {
		return p.Synthesize(ctx, text)
	})
}
