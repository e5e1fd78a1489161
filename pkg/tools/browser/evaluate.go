package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// EvaluateTool runs a JavaScript expression in the page.
type EvaluateTool struct{}

// NewEvaluateTool creates a new evaluate tool.
func NewEvaluateTool() *EvaluateTool {
	return &EvaluateTool{}
}

// Name returns the tool name.
func (t *EvaluateTool) Name() string {
	return "evaluate"
}

// Description returns the tool description.
func (t *EvaluateTool) Description() string {
	return "Evaluate a JavaScript expression in the page context and return its JSON-serializable result."
}

// Schema returns the tool's JSON schema.
func (t *EvaluateTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript expression to evaluate (e.g. \"document.title\")",
			},
		},
		[]string{"expression"},
	)
}

// ExecuteInSession evaluates the expression.
func (t *EvaluateTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	result, err := session.Evaluate(tools.StringArg(args, "expression", ""))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result}, nil
}
