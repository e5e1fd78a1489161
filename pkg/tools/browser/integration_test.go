package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/security/urlguard"
)

func TestTools_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}

	guard, err := urlguard.NewGuard(nil)
	require.NoError(t, err)
	manager := browser.NewManager(browser.ManagerOptions{
		Capacity:       1,
		AcquireTimeout: 30 * time.Second,
		Headless:       true,
		InstallDrivers: true,
		Guard:          guard,
	})
	require.NoError(t, manager.Initialize())
	defer manager.Shutdown()

	ctx := context.Background()

	info, err := NewStartSessionTool(manager).Execute(ctx, map[string]interface{}{
		"headless": true,
	})
	require.NoError(t, err)
	sessionID := info.(browser.SessionInfo).ID

	session, err := manager.Acquire(ctx, sessionID)
	require.NoError(t, err)

	navResult, err := NewNavigateTool().ExecuteInSession(ctx, session, map[string]interface{}{
		"url": "https://example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, navResult.(map[string]interface{})["url"], "example.com")

	extracted, err := NewExtractContentTool().ExecuteInSession(ctx, session, map[string]interface{}{
		"format": "text",
	})
	require.NoError(t, err)
	content := extracted.(map[string]interface{})["content"].(string)
	assert.Contains(t, content, "Example Domain")

	manager.Release(session, browser.OutcomeSuccess)
	_, err = NewCloseSessionTool(manager).Execute(ctx, map[string]interface{}{
		"session_id": sessionID,
	})
	require.NoError(t, err)
}
