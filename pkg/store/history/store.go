// Package history defines the persistence boundary for completed
// conversation turns. A bounded window of recent turns is kept so the
// assistant can answer "what did I ask you earlier" without growing without
// bound.
package history

import (
	"context"
	"time"
)

// DefaultKeep is the number of most recent turns retained by implementations
// that prune on write.
const DefaultKeep = 20

// Invocation is one capability call made during a turn.
type Invocation struct {
	// Name is the capability name.
	Name string `json:"name"`

	// Arguments is the raw JSON argument object.
	Arguments string `json:"arguments"`

	// Result is the textual handler result, error text included.
	Result string `json:"result"`
}

// Turn is one completed conversational exchange.
type Turn struct {
	// Timestamp is when the turn completed.
	Timestamp time.Time

	// UserInput is the transcribed user utterance.
	UserInput string

	// Response is the final natural-language answer.
	Response string

	// Invocations lists every capability call made, in execution order.
	Invocations []Invocation
}

// Store persists turns. Implementations must be safe for concurrent use.
type Store interface {
	// Save appends one completed turn and prunes beyond the retention
	// window.
	Save(ctx context.Context, turn Turn) error

	// Recent returns up to limit most recent turns, oldest first.
	Recent(ctx context.Context, limit int) ([]Turn, error)

	// Search returns turns whose user input or response contains the query,
	// oldest first, up to limit.
	Search(ctx context.Context, query string, limit int) ([]Turn, error)
}
