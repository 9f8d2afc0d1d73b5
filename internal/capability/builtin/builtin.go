// Package builtin provides the stock capabilities shipped with the
// assistant: clock, weather, news, search, music playback, device volume,
// conversation history, and timers. Each constructor returns catalog-ready
// entries.
package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/oakmund/hearth/pkg/provider/chat"
)

// objectSchema builds the JSON Schema object the chat providers expect.
func objectSchema(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// stringProp is a shorthand for a string schema property.
func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// decodeArgs unmarshals the handler argument JSON into v. An empty argument
// string decodes as an empty object.
func decodeArgs(args string, v any) error {
	if args == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// definition builds a chat.ToolDefinition.
func definition(name, description string, params map[string]any) chat.ToolDefinition {
	return chat.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  params,
	}
}
