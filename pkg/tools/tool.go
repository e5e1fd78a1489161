// Package tools defines the tool abstraction and the registry that maps tool
// names to argument schemas and handlers. The registry is populated once at
// process start and is read-only afterwards.
package tools

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
)

// Tool describes a capability exposed over the protocol.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g. "navigate").
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Schema returns the JSON schema for this tool's arguments.
	Schema() map[string]interface{}
}

// Handler is a tool that executes without a browser session, such as session
// management and introspection tools.
type Handler interface {
	Tool

	// Execute runs the tool with validated arguments and returns a
	// JSON-serializable result.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// SessionHandler is a tool the dispatcher binds to a browser session for the
// duration of one operation. The dispatcher owns acquisition and release; the
// handler only borrows the session.
type SessionHandler interface {
	Tool

	// ExecuteInSession runs the tool against the borrowed session.
	ExecuteInSession(ctx context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error)
}

// BaseSchema creates a common JSON schema structure for a tool with the given
// properties and required fields.
func BaseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
