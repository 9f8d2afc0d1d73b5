package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/pkg/store/timers"
)

// fuzzyLabelThreshold is the Jaro-Winkler similarity above which a spoken
// label is accepted as a match. Transcription mangles labels ("pasta" ->
// "pastah"), so exact matching alone strands timers.
const fuzzyLabelThreshold = 0.85

// Timers returns the set/list/cancel/edit timer capabilities over store.
//
// now is injectable for tests; pass time.Now in production.
func Timers(store timers.Store, now func() time.Time) []capability.Capability {
	if now == nil {
		now = time.Now
	}
	return []capability.Capability{
		setTimer(store, now),
		listTimers(store, now),
		cancelTimer(store, now),
		editTimer(store, now),
	}
}

func setTimer(store timers.Store, now func() time.Time) capability.Capability {
	return capability.Capability{
		Definition: definition(
			"set_timer",
			"Set a timer (duration like 5m, 1h30m) or alarm (time like 7:00am, 14:30).",
			objectSchema(map[string]any{
				"time":  stringProp("Duration (5m, 1h30m, 90s) or time (7:00am, 14:30)"),
				"label": stringProp("Optional label for the timer"),
			}, "time"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Time  string `json:"time"`
				Label string `json:"label"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}

			current := now()
			fireAt, err := timers.ParseFireAt(in.Time, current)
			if err != nil {
				return "", err
			}

			rec := timers.Record{
				ID:        uuid.NewString()[:8],
				Label:     strings.TrimSpace(in.Label),
				FireAt:    fireAt,
				CreatedAt: current,
			}
			if err := store.Create(ctx, rec); err != nil {
				return "", err
			}

			labelStr := ""
			if rec.Label != "" {
				labelStr = fmt.Sprintf(" %q", rec.Label)
			}
			return fmt.Sprintf("Timer%s set for %s (fires at %s)",
				labelStr, timers.FormatRemaining(rec.Remaining(current)), spokenClock(fireAt)), nil
		},
	}
}

func listTimers(store timers.Store, now func() time.Time) capability.Capability {
	return capability.Capability{
		Definition: definition(
			"list_timers",
			"List all active timers and alarms.",
			objectSchema(map[string]any{}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			recs, err := store.List(ctx)
			if err != nil {
				return "", err
			}
			if len(recs) == 0 {
				return "No active timers", nil
			}

			current := now()
			var sb strings.Builder
			for _, r := range recs {
				remaining := timers.FormatRemaining(r.Remaining(current))
				if r.Label != "" {
					fmt.Fprintf(&sb, "- %s: %s (at %s) [%s]\n", r.Label, remaining, spokenClock(r.FireAt), r.ID)
				} else {
					fmt.Fprintf(&sb, "- %s (at %s) [%s]\n", remaining, spokenClock(r.FireAt), r.ID)
				}
			}
			return strings.TrimSpace(sb.String()), nil
		},
	}
}

func cancelTimer(store timers.Store, now func() time.Time) capability.Capability {
	return capability.Capability{
		Definition: definition(
			"cancel_timer",
			"Cancel a timer or alarm by its label or ID.",
			objectSchema(map[string]any{
				"identifier": stringProp("Timer label or ID to cancel"),
			}, "identifier"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Identifier string `json:"identifier"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}

			rec, err := resolveTimer(ctx, store, in.Identifier)
			if err != nil {
				return "", err
			}
			if err := store.Cancel(ctx, rec.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Cancelled timer %s", describeTimer(rec)), nil
		},
	}
}

func editTimer(store timers.Store, now func() time.Time) capability.Capability {
	return capability.Capability{
		Definition: definition(
			"edit_timer",
			"Change the time of an existing timer or alarm.",
			objectSchema(map[string]any{
				"identifier": stringProp("Timer label or ID to edit"),
				"new_time":   stringProp("New duration (5m, 1h30m) or time (7:00am, 14:30)"),
			}, "identifier", "new_time"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Identifier string `json:"identifier"`
				NewTime    string `json:"new_time"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}

			current := now()
			fireAt, err := timers.ParseFireAt(in.NewTime, current)
			if err != nil {
				return "", err
			}
			rec, err := resolveTimer(ctx, store, in.Identifier)
			if err != nil {
				return "", err
			}
			if err := store.Update(ctx, rec.ID, fireAt); err != nil {
				return "", err
			}
			return fmt.Sprintf("Updated timer %s to %s (fires at %s)",
				describeTimer(rec), timers.FormatRemaining(fireAt.Sub(current)), spokenClock(fireAt)), nil
		},
	}
}

// resolveTimer finds a record by exact label, exact ID, ID prefix, or fuzzy
// label match, in that precedence order.
func resolveTimer(ctx context.Context, store timers.Store, identifier string) (timers.Record, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return timers.Record{}, fmt.Errorf("identifier is required")
	}

	recs, err := store.List(ctx)
	if err != nil {
		return timers.Record{}, err
	}

	lower := strings.ToLower(id)
	for _, r := range recs {
		if strings.ToLower(r.Label) == lower || r.ID == id {
			return r, nil
		}
	}
	for _, r := range recs {
		if strings.HasPrefix(r.ID, id) {
			return r, nil
		}
	}

	// Fuzzy label fallback for transcription drift.
	var (
		best      timers.Record
		bestScore float64
	)
	for _, r := range recs {
		if r.Label == "" {
			continue
		}
		if score := matchr.JaroWinkler(lower, strings.ToLower(r.Label), false); score > bestScore {
			best, bestScore = r, score
		}
	}
	if bestScore >= fuzzyLabelThreshold {
		return best, nil
	}
	return timers.Record{}, fmt.Errorf("no timer found matching %q", identifier)
}

func describeTimer(rec timers.Record) string {
	if rec.Label != "" {
		return fmt.Sprintf("%q", rec.Label)
	}
	return rec.ID
}

// spokenClock renders a fire-at time the way it should be spoken ("6:15 PM").
func spokenClock(t time.Time) string {
	return strings.TrimPrefix(t.Format("3:04 PM"), "0")
}
