package turn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/internal/orchestrator"
	"github.com/oakmund/hearth/internal/turn"
	"github.com/oakmund/hearth/pkg/audio"
	audiomock "github.com/oakmund/hearth/pkg/audio/mock"
	"github.com/oakmund/hearth/pkg/endpoint"
	chatmock "github.com/oakmund/hearth/pkg/provider/chat/mock"
	sttmock "github.com/oakmund/hearth/pkg/provider/stt/mock"
	ttsmock "github.com/oakmund/hearth/pkg/provider/tts/mock"
	"github.com/oakmund/hearth/pkg/store/history"
	"github.com/oakmund/hearth/pkg/store/history/memstore"
	vadmock "github.com/oakmund/hearth/pkg/vad/mock"
	"github.com/oakmund/hearth/pkg/wake"
	wakemock "github.com/oakmund/hearth/pkg/wake/mock"
)

// stateRecorder collects state transitions for later assertion.
type stateRecorder struct {
	mu     sync.Mutex
	states []turn.State
}

func (r *stateRecorder) record(s turn.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []turn.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]turn.State, len(r.states))
	copy(out, r.states)
	return out
}

// count returns how many times s has been recorded.
func (r *stateRecorder) count(s turn.State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.states {
		if got == s {
			n++
		}
	}
	return n
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// orderStore wraps a history store and records whether any playback had
// already happened when Save was called.
type orderStore struct {
	history.Store
	dev *audiomock.Device

	mu          sync.Mutex
	playsAtSave int
	saves       int
}

func (s *orderStore) Save(ctx context.Context, t history.Turn) error {
	s.mu.Lock()
	s.playsAtSave = len(s.dev.Plays())
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, t)
}

// fixture wires a coordinator over scripted components. The wake scorer
// fires on the first window; VAD and transcription behavior come from the
// caller's scripts.
type fixture struct {
	dev     *audiomock.Device
	channel *audio.Channel
	stt     *sttmock.Provider
	tts     *ttsmock.Provider
	store   *orderStore
	rec     *stateRecorder
	coord   *turn.Coordinator
}

func newFixture(t *testing.T, vadScript []vadmock.Result, transcript string) *fixture {
	t.Helper()

	dev := &audiomock.Device{}
	channel := audio.NewChannel(dev)
	if err := channel.Start(); err != nil {
		t.Fatalf("channel start: %v", err)
	}
	t.Cleanup(func() { _ = channel.Stop() })

	scorer := &wakemock.Scorer{
		Window: audio.FrameSamples,
		Script: []wakemock.Result{
			{Scores: map[string]float64{"hey_jarvis": 0.92}},
		},
	}

	sttp := &sttmock.Provider{Text: transcript}
	ttsp := &ttsmock.Provider{PCM: []byte{1, 2, 3, 4}, SampleRate: 24000}
	store := &orderStore{Store: memstore.New(), dev: dev}
	rec := &stateRecorder{}

	provider := chatmock.NewProvider(chatmock.Final("It is noon."))
	responder := orchestrator.New(provider, capability.NewCatalog())

	coord := turn.New(turn.Deps{
		Channel:    channel,
		Gate:       wake.NewGate(scorer),
		Classifier: &vadmock.Classifier{Session: &vadmock.Session{Script: vadScript}},
		Endpointer: endpoint.New(
			endpoint.WithSilence(90*time.Millisecond),
			endpoint.WithMaxDuration(300*time.Millisecond),
		),
		STT:       sttp,
		Responder: responder,
		History:   store,
		TTS:       ttsp,
		Output:    audio.NewOutput(dev),
	},
		turn.WithStateHook(rec.record),
		turn.WithClock(func() time.Time {
			return time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
		}),
	)

	return &fixture{dev: dev, channel: channel, stt: sttp, tts: ttsp, store: store, rec: rec, coord: coord}
}

// run starts the coordinator loop and returns a func that stops it and
// waits for exit.
func (f *fixture) run(t *testing.T) (stop func()) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- f.coord.Run(context.Background()) }()
	return func() {
		_ = f.channel.Stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v, want nil after channel close", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not exit after channel close")
		}
	}
}

// speech returns a VAD script of n speech frames followed by m silence
// frames.
func speech(n, m int) []vadmock.Result {
	var script []vadmock.Result
	for range n {
		script = append(script, vadmock.Result{Speech: true})
	}
	for range m {
		script = append(script, vadmock.Result{})
	}
	return script
}

func TestCoordinatorRunsFullTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, speech(3, 3), "what time is it")
	stop := f.run(t)
	defer stop()

	// One full frame trips the wake gate, six more carry the utterance.
	wakeFrame := make([]byte, audio.FrameBytes)
	if err := f.dev.FeedPCM(wakeFrame); err != nil {
		t.Fatalf("feed: %v", err)
	}
	for range 6 {
		if err := f.dev.FeedPCM(make([]byte, audio.FrameBytes)); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}

	waitUntil(t, func() bool { return len(f.dev.Plays()) == 1 })

	// The response was spoken with the synthesized audio.
	plays := f.dev.Plays()
	if plays[0].SampleRate != 24000 {
		t.Errorf("playback sample rate = %d, want 24000", plays[0].SampleRate)
	}
	if texts := f.tts.Texts(); len(texts) != 1 || texts[0] != "It is noon." {
		t.Errorf("synthesized texts = %v, want the final answer", texts)
	}

	// Transcription received a WAV container around the captured PCM.
	calls := f.stt.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber saw %d calls, want 1", len(calls))
	}
	if len(calls[0]) != 44+6*audio.FrameBytes {
		t.Errorf("wav size = %d, want header plus 6 frames", len(calls[0]))
	}

	// The turn was persisted before playback started.
	f.store.mu.Lock()
	saves, playsAtSave := f.store.saves, f.store.playsAtSave
	f.store.mu.Unlock()
	if saves != 1 {
		t.Fatalf("history saw %d saves, want 1", saves)
	}
	if playsAtSave != 0 {
		t.Error("turn was persisted after playback started")
	}
	turns, err := f.store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 1 || turns[0].UserInput != "what time is it" || turns[0].Response != "It is noon." {
		t.Errorf("persisted turn = %+v", turns)
	}

	// The pipeline walked every stage and returned to listening.
	waitUntil(t, func() bool { return f.rec.count(turn.ListeningForWake) == 2 })
	want := []turn.State{
		turn.ListeningForWake, turn.Capturing, turn.Understanding,
		turn.Speaking, turn.ListeningForWake,
	}
	got := f.rec.snapshot()
	if len(got) < len(want) {
		t.Fatalf("state transitions = %v, want prefix %v", got, want)
	}
	for i, s := range want {
		if got[i] != s {
			t.Fatalf("state transitions = %v, want prefix %v", got, want)
		}
	}
}

func TestCoordinatorDiscardsShortUtterance(t *testing.T) {
	t.Parallel()
	f := newFixture(t, speech(0, 4), "should never be asked")
	stop := f.run(t)
	defer stop()

	// Wake, then four tiny frames: 400 bytes total, below the minimum.
	if err := f.dev.FeedPCM(make([]byte, audio.FrameBytes)); err != nil {
		t.Fatalf("feed: %v", err)
	}
	for range 4 {
		if err := f.dev.FeedPCM(make([]byte, 100)); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}

	// The turn is abandoned straight back to listening.
	waitUntil(t, func() bool { return f.rec.count(turn.ListeningForWake) == 2 })

	if calls := f.stt.Calls(); len(calls) != 0 {
		t.Errorf("transcriber saw %d calls, want none for a discarded turn", len(calls))
	}
	if plays := f.dev.Plays(); len(plays) != 0 {
		t.Errorf("playback happened on a discarded turn: %d plays", len(plays))
	}
	f.store.mu.Lock()
	saves := f.store.saves
	f.store.mu.Unlock()
	if saves != 0 {
		t.Errorf("history saw %d saves, want none", saves)
	}

	got := f.rec.snapshot()
	want := []turn.State{turn.ListeningForWake, turn.Capturing, turn.ListeningForWake}
	for i, s := range want {
		if i >= len(got) || got[i] != s {
			t.Fatalf("state transitions = %v, want prefix %v", got, want)
		}
	}
}

func TestCoordinatorDiscardsEmptyTranscription(t *testing.T) {
	t.Parallel()
	f := newFixture(t, speech(3, 3), "   ")
	stop := f.run(t)
	defer stop()

	if err := f.dev.FeedPCM(make([]byte, audio.FrameBytes)); err != nil {
		t.Fatalf("feed: %v", err)
	}
	for range 6 {
		if err := f.dev.FeedPCM(make([]byte, audio.FrameBytes)); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}

	waitUntil(t, func() bool { return f.rec.count(turn.ListeningForWake) == 2 })

	if plays := f.dev.Plays(); len(plays) != 0 {
		t.Errorf("playback happened on an empty transcription: %d plays", len(plays))
	}
	f.store.mu.Lock()
	saves := f.store.saves
	f.store.mu.Unlock()
	if saves != 0 {
		t.Errorf("history saw %d saves, want none", saves)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		state turn.State
		want  string
	}{
		{turn.Idle, "idle"},
		{turn.ListeningForWake, "listening"},
		{turn.Capturing, "capturing"},
		{turn.Understanding, "understanding"},
		{turn.Speaking, "speaking"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", int(tc.state), got, tc.want)
		}
	}
}
