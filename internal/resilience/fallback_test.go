package resilience

import (
	"errors"
	"testing"
	"time"
)

func testGroup() *Group[string] {
	g := NewGroup("primary", "primary", GroupConfig{
		Breaker: BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour},
	})
	g.AddFallback("secondary", "secondary")
	return g
}

func TestGroupPrimarySuccess(t *testing.T) {
	t.Parallel()
	g := testGroup()

	var called string
	err := g.Execute(func(v string) error { called = v; return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "primary" {
		t.Fatalf("called = %q, want primary", called)
	}
}

func TestGroupFailsOverToSecondary(t *testing.T) {
	t.Parallel()
	g := testGroup()

	var called string
	err := g.Execute(func(v string) error {
		if v == "primary" {
			return errTest
		}
		called = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "secondary" {
		t.Fatalf("called = %q, want secondary", called)
	}
}

func TestGroupAllFail(t *testing.T) {
	t.Parallel()
	g := testGroup()

	err := g.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}

func TestGroupSkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	g := NewGroup("primary", "primary", GroupConfig{
		Breaker: BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	g.AddFallback("secondary", "secondary")

	// Trip the primary's breaker.
	_ = g.Execute(func(v string) error {
		if v == "primary" {
			return errTest
		}
		return nil
	})

	// Primary must not even be called now.
	var calls []string
	err := g.Execute(func(v string) error { calls = append(calls, v); return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0] != "secondary" {
		t.Fatalf("calls = %v, want only secondary", calls)
	}
}

func TestCallReturnsValue(t *testing.T) {
	t.Parallel()
	g := testGroup()

	got, err := Call(g, func(v string) (int, error) {
		if v == "primary" {
			return 0, errTest
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}
}
