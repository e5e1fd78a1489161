// Package browser implements the browser automation tools: session
// management, navigation, interaction, content extraction, and the assessor
// scraping workflow. Session-bound tools borrow a session from the dispatcher;
// management tools talk to the session manager directly.
package browser
