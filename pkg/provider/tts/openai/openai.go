// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/oakmund/hearth/pkg/provider/tts"
)

// pcmSampleRate is the fixed rate of the OpenAI "pcm" response format.
const pcmSampleRate = 24000

const (
	defaultModel = string(oai.SpeechModelTTS1)
	defaultVoice = "nova"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// config holds optional configuration for the provider.
type config struct {
	model   string
	voice   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the speech model. Defaults to tts-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice sets the voice name. Defaults to "nova".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, voice: defaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
	}, nil
}

// Synthesize implements tts.Provider. The raw "pcm" response format avoids a
// decode step before playback.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if text == "" {
		return nil, fmt.Errorf("openai: text must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech audio: %w", err)
	}
	return &tts.Result{PCM: pcm, SampleRate: pcmSampleRate}, nil
}
