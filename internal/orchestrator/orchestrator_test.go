package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/internal/orchestrator"
	"github.com/oakmund/hearth/pkg/provider/chat"
	chatmock "github.com/oakmund/hearth/pkg/provider/chat/mock"
)

// catalog builds a test catalog recording handler execution order.
func catalog(t *testing.T, order *[]string) *capability.Catalog {
	t.Helper()
	c := capability.NewCatalog()
	for _, name := range []string{"get_weather", "set_timer"} {
		name := name
		c.MustRegister(capability.Capability{
			Definition: chat.ToolDefinition{Name: name, Parameters: map[string]any{"type": "object"}},
			Handler: func(ctx context.Context, args string) (string, error) {
				*order = append(*order, name)
				return name + " ok", nil
			},
		})
	}
	return c
}

func TestRunFinalAnswerWithoutCapabilities(t *testing.T) {
	t.Parallel()
	var order []string
	provider := chatmock.NewProvider(chatmock.Final("It is sunny."))
	o := orchestrator.New(provider, catalog(t, &order))

	res, err := o.Run(context.Background(), "how is the weather")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Response != "It is sunny." {
		t.Errorf("response = %q, want text unchanged", res.Response)
	}
	if len(res.Invocations) != 0 {
		t.Errorf("recorded %d invocations, want 0", len(res.Invocations))
	}
	if res.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", res.Rounds)
	}
}

func TestRunExecutesRequestedCapabilitiesInOrder(t *testing.T) {
	t.Parallel()
	var order []string
	provider := chatmock.NewProvider(
		chatmock.Calls(
			chat.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Hoboken"}`},
			chat.ToolCall{ID: "call_2", Name: "set_timer", Arguments: `{"time":"5m"}`},
		),
		chatmock.Final("Done."),
	)
	o := orchestrator.New(provider, catalog(t, &order))

	res, err := o.Run(context.Background(), "weather then a timer")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(order) != 2 || order[0] != "get_weather" || order[1] != "set_timer" {
		t.Errorf("execution order = %v, want [get_weather set_timer]", order)
	}
	if len(res.Invocations) != 2 {
		t.Fatalf("recorded %d invocations, want 2", len(res.Invocations))
	}
	if res.Invocations[0].Name != "get_weather" || res.Invocations[1].Name != "set_timer" {
		t.Errorf("invocation order = %s,%s", res.Invocations[0].Name, res.Invocations[1].Name)
	}

	// The resubmitted history must carry both results, in request order,
	// before the final decision.
	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider saw %d requests, want 2", len(reqs))
	}
	second := reqs[1].Messages
	var toolMsgs []chat.Message
	for _, m := range second {
		if m.Role == "tool" {
			toolMsgs = append(toolMsgs, m)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("resubmitted history has %d tool results, want 2", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "call_1" || toolMsgs[1].ToolCallID != "call_2" {
		t.Errorf("tool result order = %s,%s, want call_1,call_2", toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID)
	}
	if toolMsgs[0].Content != "get_weather ok" {
		t.Errorf("first tool result = %q", toolMsgs[0].Content)
	}
}

func TestRunConvertsUnknownCapabilityToTextResult(t *testing.T) {
	t.Parallel()
	var order []string
	provider := chatmock.NewProvider(
		chatmock.Calls(chat.ToolCall{ID: "call_1", Name: "play_music", Arguments: "{}"}),
		chatmock.Final("Sorry, I cannot do that."),
	)
	o := orchestrator.New(provider, catalog(t, &order))

	res, err := o.Run(context.Background(), "play some jazz")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Invocations) != 1 {
		t.Fatalf("recorded %d invocations, want 1", len(res.Invocations))
	}
	if !strings.Contains(res.Invocations[0].Result, "unknown capability") {
		t.Errorf("result = %q, want in-band unknown-capability text", res.Invocations[0].Result)
	}
	if res.Response != "Sorry, I cannot do that." {
		t.Errorf("response = %q", res.Response)
	}
}

func TestRunStopsAtRoundCap(t *testing.T) {
	t.Parallel()
	var order []string
	var rounds []chatmock.Round
	for i := 0; i < 5; i++ {
		rounds = append(rounds, chatmock.Calls(chat.ToolCall{ID: "c", Name: "get_weather", Arguments: "{}"}))
	}
	provider := chatmock.NewProvider(rounds...)
	o := orchestrator.New(provider, catalog(t, &order), orchestrator.WithMaxRounds(3))

	_, err := o.Run(context.Background(), "loop forever")
	if !errors.Is(err, orchestrator.ErrNoConvergence) {
		t.Fatalf("err = %v, want ErrNoConvergence", err)
	}
	if len(provider.Requests()) != 3 {
		t.Errorf("provider saw %d requests, want exactly the cap", len(provider.Requests()))
	}
}

func TestRunSurfacesProviderFailure(t *testing.T) {
	t.Parallel()
	var order []string
	provider := chatmock.NewProvider(chatmock.Round{Err: errors.New("upstream 500")})
	o := orchestrator.New(provider, catalog(t, &order))

	if _, err := o.Run(context.Background(), "hello"); err == nil {
		t.Fatal("Run succeeded with failing provider")
	}
}
