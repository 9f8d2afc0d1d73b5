package capability_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/pkg/provider/chat"
)

func entry(name string, handler capability.Handler) capability.Capability {
	return capability.Capability{
		Definition: chat.ToolDefinition{
			Name:       name,
			Parameters: map[string]any{"type": "object"},
		},
		Handler: handler,
	}
}

func TestCatalogRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()
	c := capability.NewCatalog()
	ok := entry("get_weather", func(ctx context.Context, args string) (string, error) {
		return "sunny", nil
	})
	if err := c.Register(ok); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register(ok); err == nil {
		t.Fatal("duplicate Register succeeded")
	}
	if err := c.Register(entry("", nil)); err == nil {
		t.Fatal("nameless Register succeeded")
	}
}

func TestCatalogDefinitionsSortedByName(t *testing.T) {
	t.Parallel()
	c := capability.NewCatalog()
	noop := func(ctx context.Context, args string) (string, error) { return "ok", nil }
	for _, name := range []string{"set_timer", "get_weather", "search_internet"} {
		c.MustRegister(entry(name, noop))
	}

	defs := c.Definitions()
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}
	want := []string{"get_weather", "search_internet", "set_timer"}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("definitions[%d] = %s, want %s", i, d.Name, want[i])
		}
	}
}

func TestCatalogExecuteConvertsUnknownNameToText(t *testing.T) {
	t.Parallel()
	c := capability.NewCatalog()
	got := c.Execute(context.Background(), "no_such_capability", "{}")
	if !strings.Contains(got, "unknown capability") {
		t.Errorf("Execute = %q, want textual unknown-capability error", got)
	}
}

func TestCatalogExecuteConvertsHandlerErrorToText(t *testing.T) {
	t.Parallel()
	c := capability.NewCatalog()
	c.MustRegister(entry("get_weather", func(ctx context.Context, args string) (string, error) {
		return "", errors.New("upstream timed out")
	}))

	got := c.Execute(context.Background(), "get_weather", "{}")
	if !strings.Contains(got, "upstream timed out") {
		t.Errorf("Execute = %q, want error text surfaced in-band", got)
	}
}

func TestCatalogExecutePassesArguments(t *testing.T) {
	t.Parallel()
	c := capability.NewCatalog()
	var gotArgs string
	c.MustRegister(entry("echo", func(ctx context.Context, args string) (string, error) {
		gotArgs = args
		return "done", nil
	}))

	if got := c.Execute(context.Background(), "echo", `{"q":"hello"}`); got != "done" {
		t.Errorf("Execute = %q, want done", got)
	}
	if gotArgs != `{"q":"hello"}` {
		t.Errorf("handler args = %q", gotArgs)
	}
}
