package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// ScreenshotTool captures the current page as a base64-encoded PNG.
type ScreenshotTool struct{}

// NewScreenshotTool creates a new screenshot tool.
func NewScreenshotTool() *ScreenshotTool {
	return &ScreenshotTool{}
}

// Name returns the tool name.
func (t *ScreenshotTool) Name() string {
	return "screenshot"
}

// Description returns the tool description.
func (t *ScreenshotTool) Description() string {
	return "Capture the current page as a base64-encoded PNG image."
}

// Schema returns the tool's JSON schema.
func (t *ScreenshotTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of the viewport (default false)",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Capture timeout in milliseconds",
			},
		},
		nil,
	)
}

// ExecuteInSession captures the screenshot.
func (t *ScreenshotTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	data, err := session.Screenshot(browser.ScreenshotOptions{
		FullPage: tools.BoolArg(args, "full_page", false),
		Timeout:  tools.FloatArg(args, "timeout", 0),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"screenshot_base64": data,
		"format":            "png",
		"url":               session.CurrentURL(),
	}, nil
}
