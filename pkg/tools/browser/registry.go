package browser

import (
	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// RegisterAll registers the complete browser tool set on a registry. Session
// management tools hold the manager; session-bound tools receive their
// session from the dispatcher.
func RegisterAll(registry *tools.Registry, manager *browser.Manager) error {
	all := []tools.Tool{
		NewStartSessionTool(manager),
		NewCloseSessionTool(manager),
		NewListSessionsTool(manager),
		NewNavigateTool(),
		NewClickTool(),
		NewFillTool(),
		NewWaitForTool(),
		NewExtractContentTool(),
		NewScreenshotTool(),
		NewEvaluateTool(),
		NewScrapeAssessorTool(),
	}
	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
