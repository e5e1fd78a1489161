package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// StartSessionTool creates a new browser session and returns its id.
type StartSessionTool struct {
	manager *browser.Manager
}

// NewStartSessionTool creates a new start_session tool.
func NewStartSessionTool(manager *browser.Manager) *StartSessionTool {
	return &StartSessionTool{manager: manager}
}

// Name returns the tool name.
func (t *StartSessionTool) Name() string {
	return "start_session"
}

// Description returns the tool description.
func (t *StartSessionTool) Description() string {
	return "Start a new browser session and return its id. Pass the id as session_id on later requests to run them against this session."
}

// Schema returns the tool's JSON schema.
func (t *StartSessionTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"headless": map[string]interface{}{
				"type":        "boolean",
				"description": "Run the browser without a visible window (default true)",
			},
			"viewport_width": map[string]interface{}{
				"type":        "integer",
				"description": "Viewport width in pixels (default 1280)",
			},
			"viewport_height": map[string]interface{}{
				"type":        "integer",
				"description": "Viewport height in pixels (default 720)",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Default per-operation timeout in milliseconds (default 30000)",
			},
		},
		nil,
	)
}

// Execute starts the session and returns its snapshot.
func (t *StartSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	opts := browser.SessionOptions{
		Headless: tools.BoolArg(args, "headless", true),
		Viewport: &browser.Viewport{
			Width:  tools.IntArg(args, "viewport_width", browser.DefaultViewportWidth),
			Height: tools.IntArg(args, "viewport_height", browser.DefaultViewportHeight),
		},
		Timeout: tools.FloatArg(args, "timeout", browser.DefaultTimeout),
	}

	info, err := t.manager.StartSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	return info, nil
}
