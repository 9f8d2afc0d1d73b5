package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/pkg/store/history"
)

const historyMaxLimit = 20

// History returns the past-conversation lookup capability over store.
func History(store history.Store) capability.Capability {
	return capability.Capability{
		Definition: definition(
			"get_history",
			"Look up past conversations with the user. Use when the user references previous interactions or asks about something discussed before.",
			objectSchema(map[string]any{
				"query": stringProp("Search term to find specific conversations, or omit for recent history"),
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of conversations to return (max 20)",
				},
			}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			limit := in.Limit
			if limit <= 0 {
				limit = 5
			}
			if limit > historyMaxLimit {
				limit = historyMaxLimit
			}

			var (
				turns []history.Turn
				err   error
			)
			if in.Query != "" {
				turns, err = store.Search(ctx, in.Query, limit)
				if err != nil {
					return "", err
				}
				if len(turns) == 0 {
					return fmt.Sprintf("No past conversations found matching %q.", in.Query), nil
				}
			} else {
				turns, err = store.Recent(ctx, limit)
				if err != nil {
					return "", err
				}
				if len(turns) == 0 {
					return "No conversation history available yet.", nil
				}
			}
			return renderTurns(turns), nil
		},
	}
}

func renderTurns(turns []history.Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, t.Timestamp.Format("2006-01-02 15:04"))
		fmt.Fprintf(&sb, "User: %s\n", t.UserInput)
		fmt.Fprintf(&sb, "Assistant: %s\n", t.Response)
		if len(t.Invocations) > 0 {
			names := make([]string, len(t.Invocations))
			for j, inv := range t.Invocations {
				names[j] = inv.Name
			}
			fmt.Fprintf(&sb, "Tools used: %s\n", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
