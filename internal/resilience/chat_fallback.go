package resilience

import (
	"context"

	"github.com/oakmund/hearth/pkg/provider/chat"
)

// ChatFallback implements [chat.Provider] with failover across multiple chat
// backends. Each backend has its own circuit breaker.
type ChatFallback struct {
	group *Group[chat.Provider]
}

var _ chat.Provider = (*ChatFallback)(nil)

// NewChatFallback creates a ChatFallback preferring primary.
func NewChatFallback(primary chat.Provider, primaryName string, cfg GroupConfig) *ChatFallback {
	return &ChatFallback{group: NewGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional chat provider.
func (f *ChatFallback) AddFallback(name string, provider chat.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends req to the first healthy backend.
func (f *ChatFallback) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	return Call(f.group, func(p chat.Provider) (*chat.Response, error) {
		return p.Complete(ctx, req)
	})
}
