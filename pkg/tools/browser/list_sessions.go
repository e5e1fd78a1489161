package browser

import (
	"context"
	"sort"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// ListSessionsTool reports all live browser sessions.
type ListSessionsTool struct {
	manager *browser.Manager
}

// NewListSessionsTool creates a new list_sessions tool.
func NewListSessionsTool(manager *browser.Manager) *ListSessionsTool {
	return &ListSessionsTool{manager: manager}
}

// Name returns the tool name.
func (t *ListSessionsTool) Name() string {
	return "list_sessions"
}

// Description returns the tool description.
func (t *ListSessionsTool) Description() string {
	return "List all live browser sessions with their state, current URL, and timestamps."
}

// Schema returns the tool's JSON schema.
func (t *ListSessionsTool) Schema() map[string]interface{} {
	return tools.BaseSchema(nil, nil)
}

// Execute returns the session snapshots sorted by creation time.
func (t *ListSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	infos := t.manager.List()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return map[string]interface{}{
		"sessions": infos,
		"count":    len(infos),
	}, nil
}
