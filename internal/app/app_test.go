package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oakmund/hearth/internal/app"
	"github.com/oakmund/hearth/internal/config"
	"github.com/oakmund/hearth/pkg/provider/chat"
	chatmock "github.com/oakmund/hearth/pkg/provider/chat/mock"
	sttmock "github.com/oakmund/hearth/pkg/provider/stt/mock"
	ttsmock "github.com/oakmund/hearth/pkg/provider/tts/mock"
	historymem "github.com/oakmund/hearth/pkg/store/history/memstore"
	timersmem "github.com/oakmund/hearth/pkg/store/timers/memstore"
)

// testConfig returns a minimal config using in-memory stores.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Listening: config.ListeningConfig{
			WakeWord: "hey_jarvis",
		},
	}
}

func testProviders(chatProvider chat.Provider) *app.Providers {
	return &app.Providers{
		Chat: chatProvider,
		STT:  &sttmock.Provider{},
		TTS:  &ttsmock.Provider{},
	}
}

func TestNewWiresCapabilitiesAndStores(t *testing.T) {
	t.Parallel()

	provider := chatmock.NewProvider(chatmock.Final("ok"))
	a, err := app.New(context.Background(), testConfig(), testProviders(provider),
		app.WithHistoryStore(historymem.New()),
		app.WithTimerStore(timersmem.New()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.RunText(context.Background(), "hello"); err != nil {
		t.Fatalf("RunText: %v", err)
	}

	// The provider saw the built-in capability definitions.
	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider saw %d requests, want 1", len(reqs))
	}
	names := make(map[string]bool, len(reqs[0].Tools))
	for _, tool := range reqs[0].Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"get_current_time", "get_weather", "get_news", "search_internet",
		"get_history", "set_timer", "list_timers", "cancel_timer", "edit_timer",
	} {
		if !names[want] {
			t.Errorf("capability %q not offered; offered: %v", want, reqs[0].Tools)
		}
	}
}

func TestRunTextPersistsTurn(t *testing.T) {
	t.Parallel()

	hist := historymem.New()
	provider := chatmock.NewProvider(
		chatmock.Calls(chat.ToolCall{ID: "call_1", Name: "set_timer", Arguments: `{"time":"5m"}`}),
		chatmock.Final("Timer set."),
	)
	a, err := app.New(context.Background(), testConfig(), testProviders(provider),
		app.WithHistoryStore(hist),
		app.WithTimerStore(timersmem.New()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := a.RunText(context.Background(), "set a timer for five minutes")
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if res.Response != "Timer set." {
		t.Errorf("response = %q", res.Response)
	}
	if len(res.Invocations) != 1 || res.Invocations[0].Name != "set_timer" {
		t.Errorf("invocations = %+v", res.Invocations)
	}
	if !strings.Contains(res.Invocations[0].Result, "5 minutes") {
		t.Errorf("set_timer result = %q", res.Invocations[0].Result)
	}

	turns, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 1 || turns[0].UserInput != "set a timer for five minutes" {
		t.Errorf("persisted turns = %+v", turns)
	}
}

func TestRunWithoutDeviceFails(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(),
		testProviders(chatmock.NewProvider(chatmock.Final("ok"))),
		app.WithHistoryStore(historymem.New()),
		app.WithTimerStore(timersmem.New()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded without an audio device")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(),
		testProviders(chatmock.NewProvider(chatmock.Final("ok"))),
		app.WithHistoryStore(historymem.New()),
		app.WithTimerStore(timersmem.New()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
