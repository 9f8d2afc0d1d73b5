// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// streaming WebSocket API. The stream is collected into one PCM buffer per
// synthesis, which matches the batch playback model of the voice pipeline.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/oakmund/hearth/pkg/provider/tts"
)

const (
	wsEndpointFmt    = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000",
// "pcm_24000"). Must be a raw PCM format.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.outputFormat = format
		}
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
}

// New creates an ElevenLabs Provider. apiKey and voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ─── WebSocket message types ───

// textMessage is the JSON payload sent for each text fragment. An empty Text
// flushes and ends the stream.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is one JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// Synthesize implements tts.Provider. It opens a WebSocket, submits the full
// text, flushes, and drains the audio stream into one buffer.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, p.voiceID, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}

	// ElevenLabs requires a non-empty first text value in the handshake.
	boi := boiMessage{Text: " ", VoiceSettings: vs, XiAPIKey: p.apiKey}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return nil, fmt.Errorf("elevenlabs: send handshake: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: text, VoiceSettings: vs}); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text flushes and closes the input side.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// The server closes the socket after the final chunk; a normal
			// closure after audio arrived is the success path.
			if len(pcm) > 0 && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
		}

		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(pcm) == 0 {
		return nil, errors.New("elevenlabs: synthesis produced no audio")
	}
	return &tts.Result{PCM: pcm, SampleRate: p.sampleRate()}, nil
}

// sampleRate derives the PCM rate from the configured output format
// ("pcm_16000" -> 16000).
func (p *Provider) sampleRate() int {
	s := strings.TrimPrefix(p.outputFormat, "pcm_")
	if rate, err := strconv.Atoi(s); err == nil && rate > 0 {
		return rate
	}
	return 16000
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
