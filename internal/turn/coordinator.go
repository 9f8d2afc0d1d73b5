// Package turn sequences one conversational exchange end to end: wake
// detection, utterance capture, transcription, orchestration, persistence,
// and spoken playback. The coordinator owns the pipeline state machine and
// guarantees it returns to listening on every exit path.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oakmund/hearth/internal/observe"
	"github.com/oakmund/hearth/internal/orchestrator"
	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/endpoint"
	"github.com/oakmund/hearth/pkg/provider/stt"
	"github.com/oakmund/hearth/pkg/provider/tts"
	"github.com/oakmund/hearth/pkg/store/history"
	"github.com/oakmund/hearth/pkg/vad"
	"github.com/oakmund/hearth/pkg/wake"
)

// DefaultMinUtteranceBytes is the minimum captured PCM size worth
// transcribing. Anything shorter is an accidental trigger: the turn is
// discarded without a transcription call.
const DefaultMinUtteranceBytes = 1000

// readTimeout bounds each idle-loop frame read so shutdown is never stuck
// behind a silent microphone.
const readTimeout = time.Second

// State is the coordinator's position in the turn pipeline.
type State int

const (
	// Idle means no turn is in progress and the frame loop is not running.
	Idle State = iota

	// ListeningForWake means frames are being scored for the wake word.
	ListeningForWake

	// Capturing means an utterance is being recorded.
	Capturing

	// Understanding covers transcription and orchestration.
	Understanding

	// Speaking means the response is being synthesized and played.
	Speaking
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ListeningForWake:
		return "listening"
	case Capturing:
		return "capturing"
	case Understanding:
		return "understanding"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Responder produces the assistant's answer for one transcribed utterance.
// [orchestrator.Orchestrator] satisfies it.
type Responder interface {
	Run(ctx context.Context, userInput string) (*orchestrator.Result, error)
}

var _ Responder = (*orchestrator.Orchestrator)(nil)

// Coordinator runs the listen/capture/understand/speak loop over one audio
// channel. A single goroutine calls Run; the state accessor is safe from
// any goroutine.
type Coordinator struct {
	channel    *audio.Channel
	gate       *wake.Gate
	classifier vad.Classifier
	endpointer *endpoint.Endpointer
	stt        stt.Provider
	responder  Responder
	store      history.Store
	tts        tts.Provider
	output     *audio.Output

	logger  *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	minUtteranceBytes int
	stateHook         func(State)

	mu    sync.Mutex
	state State
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithLogger attaches a logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithMinUtteranceBytes overrides the minimum captured PCM size.
func WithMinUtteranceBytes(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.minUtteranceBytes = n
		}
	}
}

// WithClock injects the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStateHook registers fn to observe every state transition, in order.
// Used by tests; fn runs on the coordinator goroutine.
func WithStateHook(fn func(State)) Option {
	return func(c *Coordinator) { c.stateHook = fn }
}

// Deps bundles the pipeline components a Coordinator sequences.
type Deps struct {
	Channel    *audio.Channel
	Gate       *wake.Gate
	Classifier vad.Classifier
	Endpointer *endpoint.Endpointer
	STT        stt.Provider
	Responder  Responder
	History    history.Store
	TTS        tts.Provider
	Output     *audio.Output
}

// New creates a Coordinator over deps.
func New(deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		channel:           deps.Channel,
		gate:              deps.Gate,
		classifier:        deps.Classifier,
		endpointer:        deps.Endpointer,
		stt:               deps.STT,
		responder:         deps.Responder,
		store:             deps.History,
		tts:               deps.TTS,
		output:            deps.Output,
		logger:            slog.Default(),
		now:               time.Now,
		minUtteranceBytes: DefaultMinUtteranceBytes,
		state:             Idle,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// State returns the coordinator's current pipeline state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.stateHook != nil {
		c.stateHook(s)
	}
}

// Run drives the turn loop until ctx is cancelled or the audio channel
// closes. Every completed or abandoned turn returns the coordinator to
// listening with the wake scorer reset, so one turn can never poison the
// next.
func (c *Coordinator) Run(ctx context.Context) error {
	c.setState(ListeningForWake)
	defer c.setState(Idle)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := c.channel.Read(readTimeout)
		if errors.Is(err, audio.ErrReadTimeout) {
			continue
		}
		if errors.Is(err, audio.ErrChannelClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("turn: read frame: %w", err)
		}

		event, err := c.gate.Feed(frame.Data)
		if err != nil {
			c.logger.Warn("wake scoring failed", "error", err)
			continue
		}
		if event == nil {
			continue
		}

		c.metrics.RecordWake(ctx, event.Keyword)
		c.logger.Info("wake word detected", "keyword", event.Keyword, "score", event.Score)

		c.runTurn(ctx)

		// Re-arm for the next turn regardless of how this one ended.
		c.gate.Reset()
		c.setState(ListeningForWake)
	}
}

// runTurn executes one turn after a wake event. Failures are logged and
// abandon the turn; they never propagate into the listen loop.
func (c *Coordinator) runTurn(ctx context.Context) {
	ctx, span := observe.StartSpan(ctx, "turn")
	defer span.End()
	turnStart := time.Now()

	pcm, ok := c.capture(ctx)
	if !ok {
		return
	}

	c.setState(Understanding)

	text, ok := c.transcribe(ctx, pcm)
	if !ok {
		return
	}

	chatStart := time.Now()
	result, err := c.responder.Run(ctx, text)
	c.metrics.ChatDuration.Record(ctx, time.Since(chatStart).Seconds())
	if err != nil {
		c.logger.Error("orchestration failed", "error", err)
		return
	}
	for _, inv := range result.Invocations {
		c.metrics.RecordToolCall(ctx, inv.Name, toolStatus(inv.Result))
	}

	// Persist before speaking so a playback failure never loses the turn.
	if err := c.store.Save(ctx, history.Turn{
		Timestamp:   c.now(),
		UserInput:   result.UserInput,
		Response:    result.Response,
		Invocations: result.Invocations,
	}); err != nil {
		c.logger.Warn("history save failed", "error", err)
	}

	c.setState(Speaking)
	c.speak(ctx, result.Response)

	c.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
}

// capture records one utterance. Returns false when the turn should be
// abandoned.
func (c *Coordinator) capture(ctx context.Context) ([]byte, bool) {
	c.setState(Capturing)

	session, err := c.classifier.NewSession(vad.Config{
		SampleRate:  audio.SampleRate,
		FrameSizeMs: int(audio.FrameDuration / time.Millisecond),
	})
	if err != nil {
		c.logger.Error("voice activity session failed", "error", err)
		return nil, false
	}
	defer session.Close()

	start := time.Now()
	pcm, err := c.endpointer.Capture(c.channel, session)
	c.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("utterance capture failed", "error", err)
		return nil, false
	}

	if len(pcm) < c.minUtteranceBytes {
		c.metrics.RecordDiscard(ctx, "short_utterance")
		c.logger.Info("utterance too short, discarding",
			"bytes", len(pcm), "min_bytes", c.minUtteranceBytes)
		return nil, false
	}
	return pcm, true
}

// transcribe converts captured PCM to text. Returns false when the turn
// should be abandoned.
func (c *Coordinator) transcribe(ctx context.Context, pcm []byte) (string, bool) {
	wav := audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)

	start := time.Now()
	text, err := c.stt.Transcribe(ctx, wav)
	c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("transcription failed", "error", err)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		c.metrics.RecordDiscard(ctx, "empty_transcript")
		c.logger.Info("empty transcription, discarding")
		return "", false
	}

	c.logger.Info("transcribed", "text", text)
	return text, true
}

// speak synthesizes and plays the response. Playback failures are logged;
// the turn is already persisted at this point.
func (c *Coordinator) speak(ctx context.Context, response string) {
	start := time.Now()
	result, err := c.tts.Synthesize(ctx, response)
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("speech synthesis failed", "error", err)
		return
	}

	if err := c.output.Play(ctx, result.PCM, result.SampleRate); err != nil {
		c.logger.Error("playback failed", "error", err)
	}
}

func toolStatus(result string) string {
	if strings.HasPrefix(result, "Error:") {
		return "error"
	}
	return "ok"
}
