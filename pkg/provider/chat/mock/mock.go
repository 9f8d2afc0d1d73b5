// Package mock provides a scripted chat.Provider for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/oakmund/hearth/pkg/provider/chat"
)

// Compile-time assertion that Provider implements chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// Round is one scripted Complete outcome.
type Round struct {
	Response *chat.Response
	Err      error
}

// Provider is a scripted chat.Provider. Each Complete call pops the next
// Round; requests are recorded for history-ordering assertions. Calling past
// the end of the script returns an error, which keeps runaway loops visible
// in tests.
type Provider struct {
	mu       sync.Mutex
	script   []Round
	requests []chat.Request
	next     int
}

// NewProvider builds a Provider that replays the given rounds in order.
func NewProvider(rounds ...Round) *Provider {
	return &Provider{script: rounds}
}

// Final is shorthand for a round carrying a plain-text final answer.
func Final(text string) Round {
	return Round{Response: &chat.Response{Content: text}}
}

// Calls is shorthand for a round that requests the given tool calls.
func Calls(calls ...chat.ToolCall) Round {
	return Round{Response: &chat.Response{ToolCalls: calls}}
}

// Complete implements chat.Provider.
func (p *Provider) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Deep-copy messages so later history mutation cannot distort assertions.
	cp := req
	cp.Messages = make([]chat.Message, len(req.Messages))
	copy(cp.Messages, req.Messages)
	p.requests = append(p.requests, cp)

	if p.next >= len(p.script) {
		return nil, errors.New("mock: completion script exhausted")
	}
	r := p.script[p.next]
	p.next++
	return r.Response, r.Err
}

// Requests returns every recorded Complete request, in call order.
func (p *Provider) Requests() []chat.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
