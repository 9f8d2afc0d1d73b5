// Package capability provides the catalog of auxiliary functions the
// assistant can invoke during a turn: weather, timers, search, volume, and
// any tools imported from MCP servers.
//
// The catalog is built once at process start and passed by reference into
// the orchestrator; there is no global registry.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oakmund/hearth/pkg/provider/chat"
)

// defaultExecTimeout bounds a single handler call so one stuck capability
// cannot hang the whole turn.
const defaultExecTimeout = 30 * time.Second

// Handler executes one capability call with JSON-encoded args and returns a
// textual result. Implementations must be safe for concurrent use and must
// respect context cancellation.
type Handler func(ctx context.Context, args string) (string, error)

// Capability is one registered catalog entry.
type Capability struct {
	// Definition is the model-facing schema: name, description, and a JSON
	// Schema parameter specification.
	Definition chat.ToolDefinition

	// Handler runs the capability.
	Handler Handler
}

// Catalog maps capability names to handlers. Safe for concurrent use;
// registration normally finishes before the first Execute, but MCP imports
// may land late.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Capability
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithLogger attaches a logger for handler failures. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExecTimeout overrides the per-call handler timeout.
func WithExecTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCatalog creates an empty Catalog.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		entries: make(map[string]Capability),
		logger:  slog.Default(),
		timeout: defaultExecTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds one capability. Registering a name twice is an error; tools
// must not silently shadow each other.
func (c *Catalog) Register(cap Capability) error {
	if cap.Definition.Name == "" {
		return fmt.Errorf("capability: definition must have a name")
	}
	if cap.Handler == nil {
		return fmt.Errorf("capability: %q has no handler", cap.Definition.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[cap.Definition.Name]; ok {
		return fmt.Errorf("capability: %q already registered", cap.Definition.Name)
	}
	c.entries[cap.Definition.Name] = cap
	return nil
}

// MustRegister is Register that panics on error, for wiring code where a
// duplicate name is a programming mistake.
func (c *Catalog) MustRegister(cap Capability) {
	if err := c.Register(cap); err != nil {
		panic(err)
	}
}

// Definitions returns the model-facing schemas of all registered
// capabilities, sorted by name for a stable prompt.
func (c *Catalog) Definitions() []chat.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]chat.ToolDefinition, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Definition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named capability. Unknown names and handler failures are
// converted into a textual error result rather than propagated, so the model
// sees the failure in-band and can decide how to recover. The returned text
// is never empty.
func (c *Catalog) Execute(ctx context.Context, name, args string) string {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		c.logger.Warn("unknown capability requested", "capability", name)
		return fmt.Sprintf("Error: unknown capability %q.", name)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := entry.Handler(ctx, args)
	if err != nil {
		c.logger.Warn("capability failed", "capability", name, "error", err)
		return fmt.Sprintf("Error: %s failed: %v.", name, err)
	}
	if result == "" {
		return "(no output)"
	}
	return result
}
