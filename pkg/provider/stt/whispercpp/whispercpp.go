// Package whispercpp provides a local STT provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared by all Transcribe
// calls; each call gets its own whisper context, which is the unit of
// thread confinement in the bindings.
package whispercpp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithLanguage sets the transcription language code (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = lang
		}
	}
}

// Provider implements stt.Provider with a locally loaded whisper.cpp model.
type Provider struct {
	model    whisperlib.Model
	language string

	mu     sync.Mutex
	closed bool
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.model.Close()
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whispercpp: context already cancelled: %w", err)
	}

	pcm, _, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		return "", fmt.Errorf("whispercpp: decode recording: %w", err)
	}
	samples := pcmToFloat32Mono(pcm, channels)

	// Each context is not thread-safe, but the model is shareable.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return "", fmt.Errorf("whispercpp: set language %q: %w", p.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// pcmToFloat32Mono converts 16-bit signed little-endian PCM to mono float32
// normalized to [-1.0, 1.0], averaging channels when the input is not mono.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := range samplesPerChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
