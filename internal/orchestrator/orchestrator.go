// Package orchestrator drives the request/response loop against the chat
// provider: it submits the conversation plus the capability catalog, executes
// any requested capability calls in order, feeds results back, and repeats
// until the model produces a final natural-language answer.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/pkg/provider/chat"
	"github.com/oakmund/hearth/pkg/store/history"
)

// DefaultMaxRounds bounds the capability loop. The upstream model is
// expected to converge on its own; the cap only guards against a misbehaving
// service looping forever.
const DefaultMaxRounds = 10

// ErrNoConvergence is returned when the model keeps requesting capabilities
// past the round cap.
var ErrNoConvergence = fmt.Errorf("orchestrator: model did not produce a final answer within the round cap")

const systemPrompt = `You are a helpful voice assistant.

## Response Style
- Keep responses concise and conversational
- Responses will be spoken aloud, so avoid markdown, bullet points, or text-only formatting

## Input Context
You receive transcribed speech from a speech-to-text system. Transcriptions may contain:
- Phonetic errors (words that sound similar to what was said)
- Missing or extra words
- Misheard proper nouns or technical terms

Be tolerant of these errors and focus on understanding the user's intent. If a request
is unclear but you can reasonably infer the meaning, proceed with your best interpretation.
If you genuinely cannot understand what the user is asking, briefly explain that you didn't
catch that and ask them to rephrase.

## Current Time
%s

## History
If the user asks about previous conversations, references something discussed before,
or asks "what did I ask earlier", use the get_history tool to look up past interactions.`

// Result is one completed turn.
type Result struct {
	// UserInput is the transcribed user utterance the turn started with.
	UserInput string

	// Response is the final natural-language answer.
	Response string

	// Invocations lists every capability call made, in execution order.
	Invocations []history.Invocation

	// Rounds is the number of completion calls made.
	Rounds int
}

// Orchestrator runs turns against one chat provider and one capability
// catalog. Safe for concurrent use; all per-turn state is local to Run.
type Orchestrator struct {
	provider  chat.Provider
	catalog   *capability.Catalog
	logger    *slog.Logger
	maxRounds int
	now       func() time.Time
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithLogger attaches a logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxRounds overrides the capability-loop round cap.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithClock injects the time source used for the system prompt timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator over provider and catalog.
func New(provider chat.Provider, catalog *capability.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:  provider,
		catalog:   catalog,
		logger:    slog.Default(),
		maxRounds: DefaultMaxRounds,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes one user message to a final answer.
//
// Each round submits the full message history plus the capability catalog.
// When the response carries capability requests they are executed in the
// order received and their results appended to history in that same order
// before resubmission; the ordering is observable by the model and must be
// preserved. Unknown names and handler failures become textual results, so
// the model decides how to recover.
func (o *Orchestrator) Run(ctx context.Context, userInput string) (*Result, error) {
	messages := []chat.Message{
		{Role: "system", Content: o.buildSystemPrompt()},
		{Role: "user", Content: userInput},
	}
	tools := o.catalog.Definitions()

	result := &Result{UserInput: userInput}

	for result.Rounds < o.maxRounds {
		resp, err := o.provider.Complete(ctx, chat.Request{
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: completion round %d: %w", result.Rounds+1, err)
		}
		result.Rounds++

		if len(resp.ToolCalls) == 0 {
			result.Response = resp.Content
			return result, nil
		}

		messages = append(messages, chat.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			o.logger.Debug("executing capability", "capability", tc.Name, "round", result.Rounds)
			output := o.catalog.Execute(ctx, tc.Name, tc.Arguments)

			result.Invocations = append(result.Invocations, history.Invocation{
				Name:      tc.Name,
				Arguments: tc.Arguments,
				Result:    output,
			})
			messages = append(messages, chat.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, ErrNoConvergence
}

func (o *Orchestrator) buildSystemPrompt() string {
	timestamp := o.now().Format("Monday, January 2, 2006 at 3:04 PM")
	return fmt.Sprintf(systemPrompt, timestamp)
}
