package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// WaitForTool waits for an element to reach a state.
type WaitForTool struct{}

// NewWaitForTool creates a new wait_for tool.
func NewWaitForTool() *WaitForTool {
	return &WaitForTool{}
}

// Name returns the tool name.
func (t *WaitForTool) Name() string {
	return "wait_for"
}

// Description returns the tool description.
func (t *WaitForTool) Description() string {
	return "Wait for an element matched by a CSS selector to reach a state: visible (default), hidden, attached, or detached."
}

// Schema returns the tool's JSON schema.
func (t *WaitForTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element to wait for",
			},
			"state": map[string]interface{}{
				"type":        "string",
				"description": "Target state: 'visible' (default), 'hidden', 'attached', or 'detached'",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Wait timeout in milliseconds",
			},
		},
		[]string{"selector"},
	)
}

// ExecuteInSession performs the wait.
func (t *WaitForTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	opts := browser.WaitOptions{
		Selector: tools.StringArg(args, "selector", ""),
		State:    tools.StringArg(args, "state", "visible"),
		Timeout:  tools.FloatArg(args, "timeout", 0),
	}
	if err := session.WaitFor(opts); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"selector": opts.Selector,
		"state":    opts.State,
	}, nil
}
