// Package openwake provides a wake.Scorer backed by an openWakeWord scoring
// server.
//
// The server exposes a minimal REST API: POST /score accepts one model window
// of 16-bit little-endian PCM and returns per-keyword confidences, POST /reset
// clears the streaming state. Because the model keeps convolutional state
// between windows, one Scorer maps to one server-side session.
//
// Usage:
//
//	s, err := openwake.New("http://localhost:9001",
//	    openwake.WithWindowSamples(1280),
//	)
//	scores, err := s.Score(window)
package openwake

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oakmund/hearth/pkg/wake"
)

const (
	// defaultWindowSamples matches the openWakeWord melspectrogram hop: 80 ms
	// of 16 kHz audio per scoring call.
	defaultWindowSamples = 1280

	defaultTimeout = 5 * time.Second
)

// Compile-time assertion that Scorer implements wake.Scorer.
var _ wake.Scorer = (*Scorer)(nil)

// Option is a functional option for configuring a Scorer.
type Option func(*Scorer)

// WithWindowSamples overrides the per-call window size in samples. Must match
// the hop size the server's model was exported with. Defaults to 1280.
func WithWindowSamples(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.windowSamples = n
		}
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to adjust timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scorer) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// Scorer implements wake.Scorer against an openWakeWord HTTP server.
type Scorer struct {
	serverURL     string
	windowSamples int
	httpClient    *http.Client
}

// New creates a Scorer for the server at serverURL
// (e.g., "http://localhost:9001"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Scorer, error) {
	if serverURL == "" {
		return nil, errors.New("openwake: serverURL must not be empty")
	}
	s := &Scorer{
		serverURL:     serverURL,
		windowSamples: defaultWindowSamples,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// FrameSamples implements wake.Scorer.
func (s *Scorer) FrameSamples() int { return s.windowSamples }

// scoreResponse is the JSON body of a successful POST /score.
type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Score implements wake.Scorer. It submits one model window and returns the
// server's per-keyword confidences.
func (s *Scorer) Score(samples []int16) (map[string]float64, error) {
	if len(samples) != s.windowSamples {
		return nil, fmt.Errorf("openwake: window is %d samples, want %d", len(samples), s.windowSamples)
	}

	body := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(body[i*2:], uint16(v))
	}

	req, err := http.NewRequest(http.MethodPost, s.serverURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openwake: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openwake: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openwake: server returned %d: %s", resp.StatusCode, msg)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("openwake: decode response: %w", err)
	}
	return sr.Scores, nil
}

// Reset implements wake.Scorer. Server errors are swallowed: the next Score
// call will surface any real connectivity problem, and a missed reset only
// risks one spurious re-trigger.
func (s *Scorer) Reset() {
	req, err := http.NewRequest(http.MethodPost, s.serverURL+"/reset", nil)
	if err != nil {
		return
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
