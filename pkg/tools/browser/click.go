package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// ClickTool clicks an element in the page.
type ClickTool struct{}

// NewClickTool creates a new click tool.
func NewClickTool() *ClickTool {
	return &ClickTool{}
}

// Name returns the tool name.
func (t *ClickTool) Name() string {
	return "click"
}

// Description returns the tool description.
func (t *ClickTool) Description() string {
	return "Click an element matched by a CSS selector. Waits for the element to be actionable first."
}

// Schema returns the tool's JSON schema.
func (t *ClickTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element to click",
			},
			"button": map[string]interface{}{
				"type":        "string",
				"description": "Mouse button: 'left' (default), 'right', or 'middle'",
			},
			"click_count": map[string]interface{}{
				"type":        "integer",
				"description": "Number of clicks (use 2 for double-click)",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Actionability timeout in milliseconds",
			},
		},
		[]string{"selector"},
	)
}

// ExecuteInSession performs the click.
func (t *ClickTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	opts := browser.ClickOptions{
		Selector:   tools.StringArg(args, "selector", ""),
		Button:     tools.StringArg(args, "button", "left"),
		ClickCount: tools.IntArg(args, "click_count", 1),
		Timeout:    tools.FloatArg(args, "timeout", 0),
	}
	if err := session.Click(opts); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"clicked":     opts.Selector,
		"current_url": session.CurrentURL(),
	}, nil
}
