package builtin_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oakmund/hearth/internal/capability/builtin"
	"github.com/oakmund/hearth/pkg/store/timers/memstore"
)

var fixedNow = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestSetTimerFiveMinutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	caps := builtin.Timers(store, clock)

	set := caps[0]
	if set.Definition.Name != "set_timer" {
		t.Fatalf("caps[0] = %s, want set_timer", set.Definition.Name)
	}
	out, err := set.Handler(ctx, `{"time":"5m"}`)
	if err != nil {
		t.Fatalf("set_timer: %v", err)
	}
	if !strings.Contains(out, "5 minutes") {
		t.Errorf("output = %q, want remaining close to 5 minutes", out)
	}
	if strings.Contains(out, `""`) {
		t.Errorf("output = %q, unlabeled timer must not render a label", out)
	}

	recs, _ := store.List(ctx)
	if len(recs) != 1 {
		t.Fatalf("stored %d records, want 1", len(recs))
	}
	if recs[0].Label != "" {
		t.Errorf("label = %q, want empty", recs[0].Label)
	}
	if want := fixedNow.Add(5 * time.Minute); !recs[0].FireAt.Equal(want) {
		t.Errorf("fire_at = %v, want %v", recs[0].FireAt, want)
	}
}

func TestCancelTimerFuzzyLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	caps := builtin.Timers(store, clock)
	set, cancel := caps[0], caps[2]

	if _, err := set.Handler(ctx, `{"time":"10m","label":"pasta"}`); err != nil {
		t.Fatalf("set_timer: %v", err)
	}

	// Transcription drift: "pastah" still resolves to the pasta timer.
	out, err := cancel.Handler(ctx, `{"identifier":"pastah"}`)
	if err != nil {
		t.Fatalf("cancel_timer: %v", err)
	}
	if !strings.Contains(out, "pasta") {
		t.Errorf("output = %q, want the resolved label", out)
	}
	if recs, _ := store.List(ctx); len(recs) != 0 {
		t.Errorf("%d timers remain after cancel", len(recs))
	}
}

func TestCancelTimerUnknownIdentifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	cancel := builtin.Timers(store, clock)[2]

	if _, err := cancel.Handler(ctx, `{"identifier":"nothing"}`); err == nil {
		t.Fatal("cancel of unknown identifier succeeded")
	}
}

func TestEditTimerByIDPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	caps := builtin.Timers(store, clock)
	set, edit := caps[0], caps[3]

	if _, err := set.Handler(ctx, `{"time":"10m"}`); err != nil {
		t.Fatalf("set_timer: %v", err)
	}
	recs, _ := store.List(ctx)
	prefix := recs[0].ID[:4]

	out, err := edit.Handler(ctx, `{"identifier":"`+prefix+`","new_time":"1h"}`)
	if err != nil {
		t.Fatalf("edit_timer: %v", err)
	}
	if !strings.Contains(out, "1 hour") {
		t.Errorf("output = %q, want new remaining time", out)
	}
	recs, _ = store.List(ctx)
	if want := fixedNow.Add(time.Hour); !recs[0].FireAt.Equal(want) {
		t.Errorf("fire_at = %v, want %v", recs[0].FireAt, want)
	}
}

func TestListTimersEmpty(t *testing.T) {
	t.Parallel()
	list := builtin.Timers(memstore.New(), clock)[1]
	out, err := list.Handler(context.Background(), "{}")
	if err != nil {
		t.Fatalf("list_timers: %v", err)
	}
	if out != "No active timers" {
		t.Errorf("output = %q", out)
	}
}
