package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// FillTool fills a form input with a value.
type FillTool struct{}

// NewFillTool creates a new fill tool.
func NewFillTool() *FillTool {
	return &FillTool{}
}

// Name returns the tool name.
func (t *FillTool) Name() string {
	return "fill"
}

// Description returns the tool description.
func (t *FillTool) Description() string {
	return "Fill a form input matched by a CSS selector with a value, replacing any existing content."
}

// Schema returns the tool's JSON schema.
func (t *FillTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the input to fill",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Value to enter into the input",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Actionability timeout in milliseconds",
			},
		},
		[]string{"selector", "value"},
	)
}

// ExecuteInSession performs the fill.
func (t *FillTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	opts := browser.FillOptions{
		Selector: tools.StringArg(args, "selector", ""),
		Value:    tools.StringArg(args, "value", ""),
		Timeout:  tools.FloatArg(args, "timeout", 0),
	}
	if err := session.Fill(opts); err != nil {
		return nil, err
	}
	return map[string]interface{}{"filled": opts.Selector}, nil
}
