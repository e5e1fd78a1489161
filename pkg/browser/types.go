package browser

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/playwright-community/playwright-go"

	"github.com/oakmont/parcelscout/pkg/security/urlguard"
)

// State is a browser session's lifecycle state. Transitions happen only under
// the manager lock.
type State int

const (
	// StateCreating means the engine resources are being launched.
	StateCreating State = iota

	// StateIdle means the session is live and available for acquisition.
	StateIdle

	// StateBusy means exactly one handler holds the session.
	StateBusy

	// StateFaulted means the engine became untrustworthy; always followed by
	// Closing and Closed.
	StateFaulted

	// StateClosing means resources are being released.
	StateClosing

	// StateClosed is terminal; the identifier is never reused.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateFaulted:
		return "faulted"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome describes how a handler's borrow of a session ended. It drives the
// release transition.
type Outcome int

const (
	// OutcomeSuccess returns the session to the idle pool (or hands it to the
	// next queued waiter).
	OutcomeSuccess Outcome = iota

	// OutcomeTainted marks the session possibly inconsistent (e.g. a deadline
	// expired mid-operation); it is evicted instead of reused.
	OutcomeTainted

	// OutcomeFault means the engine crashed or disconnected; the session is
	// destroyed and its identifier invalidated.
	OutcomeFault
)

// Session is an isolated browser execution context. Lifecycle fields are
// owned by the Manager; handlers borrow a session through Acquire and operate
// on the page via the operation methods in session.go.
type Session struct {
	// ID uniquely identifies the session for its whole life. IDs are never
	// reused after close.
	ID string

	// CreatedAt is when the engine resources finished launching.
	CreatedAt time.Time

	// Engine resources.
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	// Default per-operation timeout in milliseconds.
	opTimeout float64

	headless bool

	// Navigation allowlist, checked before any page load.
	guard *urlguard.Guard

	// Guarded by the manager mutex.
	state      State
	lastUsedAt time.Time
	tainted    bool
	waiters    []chan error

	// Guarded by urlMu; written by operations while the session is Busy,
	// read by List snapshots.
	urlMu      sync.Mutex
	currentURL string
}

func (s *Session) setCurrentURL(url string) {
	s.urlMu.Lock()
	s.currentURL = url
	s.urlMu.Unlock()
}

// CurrentURL returns the URL of the session's current page.
func (s *Session) CurrentURL() string {
	s.urlMu.Lock()
	defer s.urlMu.Unlock()
	return s.currentURL
}

// Page exposes the underlying page for handlers that need direct engine
// access (evaluate, screenshots).
func (s *Session) Page() playwright.Page {
	return s.page
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Headless bool
	Viewport *Viewport

	// Timeout is the default per-operation timeout in milliseconds.
	Timeout float64
}

// Viewport is the browser viewport size in pixels.
type Viewport struct {
	Width  int
	Height int
}

// SessionInfo is a point-in-time snapshot of a session's metadata.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	State      string    `json:"state"`
	CurrentURL string    `json:"current_url"`
	Headless   bool      `json:"headless"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// NavigateOptions configures page navigation.
type NavigateOptions struct {
	// WaitUntil is one of "load", "domcontentloaded", "networkidle".
	WaitUntil string
	Timeout   float64
}

// ClickOptions configures element clicking.
type ClickOptions struct {
	Selector   string
	Button     string
	ClickCount int
	Timeout    float64
}

// FillOptions configures form input filling.
type FillOptions struct {
	Selector string
	Value    string
	Timeout  float64
}

// WaitOptions configures waiting for an element state.
type WaitOptions struct {
	Selector string
	// State is one of "attached", "detached", "visible", "hidden".
	State   string
	Timeout float64
}

// ExtractFormat selects the content extraction format.
type ExtractFormat string

const (
	FormatText       ExtractFormat = "text"
	FormatMarkdown   ExtractFormat = "markdown"
	FormatStructured ExtractFormat = "structured"
)

// ExtractOptions configures content extraction.
type ExtractOptions struct {
	Format    ExtractFormat
	Selector  string
	MaxLength int
}

// StructuredContent is the structured extraction result.
type StructuredContent struct {
	Title    string   `json:"title"`
	Headings []string `json:"headings"`
	Links    []Link   `json:"links"`
	Body     string   `json:"body"`
}

// Link is a hyperlink with its text and target.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// ScreenshotOptions configures a page capture.
type ScreenshotOptions struct {
	FullPage bool
	Timeout  float64
}

// Default values for session and operation configuration.
const (
	DefaultTimeout        = 30000.0
	DefaultMaxLength      = 10000
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// truncate cuts s to at most limit bytes without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
