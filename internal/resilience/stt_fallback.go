package resilience

import (
	"context"

	"github.com/oakmund/hearth/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *Group[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an STTFallback preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg GroupConfig) *STTFallback {
	return &STTFallback{group: NewGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional transcription provider.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe converts wav to text using the first healthy backend.
func (f *STTFallback) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return Call(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, wav)
	})
}
