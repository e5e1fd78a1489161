package browser

import (
	"context"
	"fmt"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// ExtractContentTool extracts page content as text, markdown-ish cleaned
// HTML, or structured data.
type ExtractContentTool struct{}

// NewExtractContentTool creates a new extract_content tool.
func NewExtractContentTool() *ExtractContentTool {
	return &ExtractContentTool{}
}

// Name returns the tool name.
func (t *ExtractContentTool) Name() string {
	return "extract_content"
}

// Description returns the tool description.
func (t *ExtractContentTool) Description() string {
	return "Extract content from the current page. Formats: 'text' (plain text of the page or a selector), 'markdown' (cleaned HTML with noise stripped), 'structured' (title, headings, links, body)."
}

// Schema returns the tool's JSON schema.
func (t *ExtractContentTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Extraction format: 'text' (default), 'markdown', or 'structured'",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "Optional CSS selector to scope text extraction",
			},
			"max_length": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum output length in characters (default 10000)",
			},
		},
		nil,
	)
}

// ExecuteInSession performs the extraction.
func (t *ExtractContentTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	format := browser.ExtractFormat(tools.StringArg(args, "format", string(browser.FormatText)))
	switch format {
	case browser.FormatText, browser.FormatMarkdown, browser.FormatStructured:
	default:
		return nil, &protocol.FieldError{
			Field:   "format",
			Message: fmt.Sprintf("unsupported format %q", format),
		}
	}

	content, err := session.ExtractContent(browser.ExtractOptions{
		Format:    format,
		Selector:  tools.StringArg(args, "selector", ""),
		MaxLength: tools.IntArg(args, "max_length", browser.DefaultMaxLength),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"format":  string(format),
		"content": content,
		"url":     session.CurrentURL(),
	}, nil
}
