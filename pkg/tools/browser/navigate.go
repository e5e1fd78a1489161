package browser

import (
	"context"
	"fmt"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// NavigateTool navigates a session to a URL.
type NavigateTool struct{}

// NewNavigateTool creates a new navigate tool.
func NewNavigateTool() *NavigateTool {
	return &NavigateTool{}
}

// Name returns the tool name.
func (t *NavigateTool) Name() string {
	return "navigate"
}

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate the browser session to a URL and wait for the page to load. The URL must use http or https and match the configured allowlist."
}

// Schema returns the tool's JSON schema.
func (t *NavigateTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to navigate to, including protocol (e.g. https://assessor.example.gov)",
			},
			"wait_until": map[string]interface{}{
				"type":        "string",
				"description": "When navigation counts as complete: 'load' (default), 'domcontentloaded', or 'networkidle'",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Navigation timeout in milliseconds",
			},
		},
		[]string{"url"},
	)
}

// ExecuteInSession performs the navigation and returns the landing page
// metadata.
func (t *NavigateTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	waitUntil := tools.StringArg(args, "wait_until", "load")
	switch waitUntil {
	case "load", "domcontentloaded", "networkidle":
	default:
		return nil, &protocol.FieldError{
			Field:   "wait_until",
			Message: fmt.Sprintf("unsupported wait_until %q", waitUntil),
		}
	}

	err := session.Navigate(tools.StringArg(args, "url", ""), browser.NavigateOptions{
		WaitUntil: waitUntil,
		Timeout:   tools.FloatArg(args, "timeout", 0),
	})
	if err != nil {
		return nil, err
	}

	meta, err := session.Metadata()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"session_id": session.ID,
		"url":        meta["url"],
		"title":      meta["title"],
	}, nil
}
