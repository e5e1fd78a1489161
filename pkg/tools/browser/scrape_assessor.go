package browser

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// ScrapeAssessorTool runs the full assessor-site workflow: navigate, search
// for a property, and extract tax data from the results.
type ScrapeAssessorTool struct{}

// NewScrapeAssessorTool creates a new scrape_assessor tool.
func NewScrapeAssessorTool() *ScrapeAssessorTool {
	return &ScrapeAssessorTool{}
}

// Name returns the tool name.
func (t *ScrapeAssessorTool) Name() string {
	return "scrape_assessor"
}

// Description returns the tool description.
func (t *ScrapeAssessorTool) Description() string {
	return "Scrape a county assessor website for property tax data. Navigates to the site, searches by parcel id, address, or owner name, and extracts parcel details, assessed values, and result tables."
}

// Schema returns the tool's JSON schema.
func (t *ScrapeAssessorTool) Schema() map[string]interface{} {
	return tools.BaseSchema(
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Assessor website search page URL",
			},
			"parcel_id": map[string]interface{}{
				"type":        "string",
				"description": "Parcel or APN number to search for",
			},
			"address": map[string]interface{}{
				"type":        "string",
				"description": "Property street address to search for",
			},
			"owner_name": map[string]interface{}{
				"type":        "string",
				"description": "Property owner name to search for",
			},
			"screenshots": map[string]interface{}{
				"type":        "boolean",
				"description": "Include before/after screenshots in the result (default false)",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Per-step timeout in milliseconds",
			},
		},
		[]string{"url"},
	)
}

// ExecuteInSession runs the scrape.
func (t *ScrapeAssessorTool) ExecuteInSession(_ context.Context, session *browser.Session, args map[string]interface{}) (interface{}, error) {
	opts := browser.ScrapeOptions{
		URL:         tools.StringArg(args, "url", ""),
		ParcelID:    tools.StringArg(args, "parcel_id", ""),
		Address:     tools.StringArg(args, "address", ""),
		OwnerName:   tools.StringArg(args, "owner_name", ""),
		Screenshots: tools.BoolArg(args, "screenshots", false),
		Timeout:     tools.FloatArg(args, "timeout", 0),
	}
	if opts.ParcelID == "" && opts.Address == "" && opts.OwnerName == "" {
		return nil, &protocol.FieldError{
			Field:   "parcel_id",
			Message: "at least one of parcel_id, address, or owner_name is required",
		}
	}
	return session.ScrapeAssessor(opts)
}
