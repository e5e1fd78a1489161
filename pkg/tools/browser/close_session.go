package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// CloseSessionTool closes an idle browser session.
type CloseSessionTool struct {
	manager *browser.Manager
}

// NewCloseSessionTool creates a new close_session tool.
func NewCloseSessionTool(manager *browser.Manager) *CloseSessionTool {
	return &CloseSessionTool{manager: manager}
}

// Name returns the tool name.
func (t *CloseSessionTool) Name() string {
	return "close_session"
}

// Description returns the tool description.
func (t *CloseSessionTool) Description() string {
	return "Close a browser session and release its resources. The session must be idle."
}

// Schema returns the tool's JSON schema.
func (t *CloseSessionTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Id of the session to close",
			},
		},
		[]string{"session_id"},
	)
}

// Execute closes the named session.
func (t *CloseSessionTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := tools.StringArg(args, "session_id", "")
	if err := t.manager.Close(sessionID); err != nil {
		return nil, &protocol.FieldError{Field: "session_id", Message: err.Error()}
	}
	return map[string]interface{}{
		"session_id": sessionID,
		"closed":     true,
	}, nil
}
