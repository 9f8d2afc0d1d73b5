// Package chat defines the Provider interface for chat-completion backends.
//
// A chat provider wraps a remote or local model API (e.g., OpenAI, Anthropic
// via any-llm, or a local Ollama instance) and exposes a uniform completion
// call for the tool orchestrator, without coupling it to any specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package chat

import "context"

// Message is one entry in the conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant" or "tool".
	Role string

	// Content is the textual payload. May be empty on assistant messages
	// that carry only tool calls.
	Content string

	// ToolCalls holds the capability invocations an assistant message
	// requested. Only set when Role is "assistant".
	ToolCalls []ToolCall

	// ToolCallID links a "tool" message back to the invocation it answers.
	ToolCallID string
}

// ToolCall is one capability invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned invocation identifier, echoed back in the
	// corresponding tool-result message.
	ID string

	// Name is the capability name as registered in the catalog.
	Name string

	// Arguments is the raw JSON argument object, unparsed. The capability
	// handler owns decoding.
	Arguments string
}

// ToolDefinition advertises one capability to the model.
type ToolDefinition struct {
	// Name is the capability name, unique within the catalog.
	Name string

	// Description tells the model when to invoke the capability.
	Description string

	// Parameters is a JSON Schema object describing the argument shape.
	Parameters map[string]any
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and differ between providers for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries everything the model needs to produce one completion.
type Request struct {
	// Messages is the ordered conversation history, system prompt included.
	Messages []Message

	// Tools is the capability catalog offered to the model for this call.
	Tools []ToolDefinition

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// Response is one completed model round.
type Response struct {
	// Content is the assistant's reply text. Empty when the model responds
	// exclusively with tool calls.
	Content string

	// ToolCalls lists the capability invocations the model requested, in
	// the order the model emitted them. Empty on a final answer.
	ToolCalls []ToolCall

	// Usage contains token accounting for this round.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)
}
