package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oakmund/hearth/pkg/provider/chat"
)

// MCPServer describes one external MCP server whose tools are imported into
// the catalog.
type MCPServer struct {
	// Name identifies the server in logs and in tool-name prefixes.
	Name string

	// Command, when set, launches the server over stdio. Split on spaces
	// into executable and args.
	Command string

	// URL, when set, connects over streamable HTTP. Exactly one of Command
	// and URL must be set.
	URL string

	// Env holds extra environment variables for stdio servers.
	Env map[string]string
}

// MCPImporter connects to MCP servers and registers their tools as catalog
// capabilities. Sessions stay open for the life of the process; Close tears
// them down.
type MCPImporter struct {
	client   *mcpsdk.Client
	sessions []*mcpsdk.ClientSession
}

// NewMCPImporter creates an importer. One SDK client manages all sessions.
func NewMCPImporter() *MCPImporter {
	return &MCPImporter{
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "hearth", Version: "1.0.0"},
			nil,
		),
	}
}

// Import connects to srv, discovers its tools, and registers each one on the
// catalog. Tool names are prefixed with the server name ("serverName_tool")
// so imports cannot collide with built-ins or with each other.
func (im *MCPImporter) Import(ctx context.Context, catalog *Catalog, srv MCPServer) error {
	if srv.Name == "" {
		return fmt.Errorf("capability: mcp server must have a name")
	}

	var transport mcpsdk.Transport
	switch {
	case srv.Command != "":
		executable, args := splitCommand(srv.Command)
		if executable == "" {
			return fmt.Errorf("capability: mcp server %q has an empty command", srv.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		for k, v := range srv.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case srv.URL != "":
		transport = &mcpsdk.StreamableClientTransport{Endpoint: srv.URL}

	default:
		return fmt.Errorf("capability: mcp server %q needs a command or a url", srv.Name)
	}

	session, err := im.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("capability: connect to mcp server %q: %w", srv.Name, err)
	}

	var imported int
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("capability: list tools for %q: %w", srv.Name, err)
		}
		if err := catalog.Register(mcpCapability(session, srv.Name, *tool)); err != nil {
			_ = session.Close()
			return err
		}
		imported++
	}
	if imported == 0 {
		_ = session.Close()
		return fmt.Errorf("capability: mcp server %q exposes no tools", srv.Name)
	}

	im.sessions = append(im.sessions, session)
	return nil
}

// Close shuts down all imported server sessions.
func (im *MCPImporter) Close() error {
	var firstErr error
	for _, s := range im.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	im.sessions = nil
	return firstErr
}

// mcpCapability wraps one discovered MCP tool as a catalog entry.
func mcpCapability(session *mcpsdk.ClientSession, serverName string, tool mcpsdk.Tool) Capability {
	return Capability{
		Definition: chat.ToolDefinition{
			Name:        serverName + "_" + tool.Name,
			Description: tool.Description,
			Parameters:  schemaToMap(tool.InputSchema),
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			var argsMap map[string]any
			if args != "" {
				if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
			}

			result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
				Name:      tool.Name,
				Arguments: argsMap,
			})
			if err != nil {
				return "", fmt.Errorf("call %s: %w", tool.Name, err)
			}

			var sb strings.Builder
			for _, c := range result.Content {
				if tc, ok := c.(*mcpsdk.TextContent); ok {
					sb.WriteString(tc.Text)
				}
			}
			if result.IsError {
				return "", fmt.Errorf("%s reported an error: %s", tool.Name, sb.String())
			}
			return sb.String(), nil
		},
	}
}

// schemaToMap normalizes a tool's input schema into the map shape the chat
// providers expect.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// splitCommand splits a command string on spaces into executable and args.
func splitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
