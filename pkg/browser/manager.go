// Package browser owns the bounded pool of headless browser sessions and the
// engine operations that run against them. All session state transitions go
// through the Manager; a handler only ever holds a session between exactly one
// Acquire and one Release.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/oakmont/parcelscout/pkg/logging"
	"github.com/oakmont/parcelscout/pkg/metrics"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/security/urlguard"
)

// ManagerOptions configures the session pool.
type ManagerOptions struct {
	// Capacity caps concurrently live sessions.
	Capacity int

	// IdleTimeout is how long an idle session survives before reaping.
	IdleTimeout time.Duration

	// ReapInterval is the reaper cadence.
	ReapInterval time.Duration

	// AcquireTimeout bounds how long Acquire waits for a free slot.
	AcquireTimeout time.Duration

	// Headless is the default mode for new sessions.
	Headless bool

	// Viewport is the default viewport for new sessions.
	Viewport Viewport

	// InstallDrivers controls whether Initialize downloads browser binaries.
	InstallDrivers bool

	// Guard validates navigation targets. Required.
	Guard *urlguard.Guard

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Manager owns all browser sessions and the playwright driver. It is the
// single critical section for session state: no session transitions state
// outside the manager lock.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	slots       *limiter
	playwright  *playwright.Playwright
	opts        ManagerOptions
	logger      *logging.Logger
	metrics     *metrics.Metrics
	initialized bool
}

// NewManager creates a session manager. Initialize must be called before any
// session is created.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.Viewport.Width == 0 {
		opts.Viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		slots:    newLimiter(opts.Capacity),
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Initialize installs (if configured) and starts the playwright driver.
// Driver output is discarded; stdout belongs to the protocol channel.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if m.opts.InstallDrivers {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright drivers: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.logger.Info("browser engine initialized",
		zap.Int("capacity", m.opts.Capacity),
		zap.Duration("idle_timeout", m.opts.IdleTimeout))
	return nil
}

// Acquire returns a session transitioned to Busy for the caller's exclusive
// use.
//
// With a session id, the caller queues FIFO behind the current holder if the
// session is Busy; queued requests therefore execute in arrival order. With
// no id, an idle session is reused when available, otherwise a new one is
// created within pool capacity; at capacity the caller waits FIFO for a slot,
// bounded by the configured acquire timeout and the request deadline, and the
// pool reports exhaustion on expiry.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID != "" {
		return m.acquireExisting(ctx, sessionID)
	}
	return m.acquireAny(ctx)
}

func (m *Manager) acquireExisting(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	s, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return nil, &protocol.FieldError{
			Field:   "session_id",
			Message: fmt.Sprintf("session %q not found", sessionID),
		}
	}

	switch s.state {
	case StateIdle:
		s.state = StateBusy
		s.lastUsedAt = time.Now()
		m.mu.Unlock()
		return s, nil
	case StateBusy, StateCreating:
		// Queue behind the current holder; the releaser hands the session
		// over in arrival order.
		ch := make(chan error, 1)
		s.waiters = append(s.waiters, ch)
		m.mu.Unlock()

		select {
		case err := <-ch:
			if err != nil {
				return nil, err
			}
			return s, nil
		case <-ctx.Done():
			m.mu.Lock()
			// The releaser may have handed us the session concurrently; if
			// so, give it straight back.
			select {
			case err := <-ch:
				m.mu.Unlock()
				if err == nil {
					m.Release(s, OutcomeSuccess)
				}
				return nil, fmt.Errorf("%w: deadline expired while queued for session %s", protocol.ErrOperationTimeout, sessionID)
			default:
			}
			for i, w := range s.waiters {
				if w == ch {
					s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
					break
				}
			}
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: deadline expired while queued for session %s", protocol.ErrOperationTimeout, sessionID)
		}
	default:
		m.mu.Unlock()
		return nil, &protocol.FieldError{
			Field:   "session_id",
			Message: fmt.Sprintf("session %q is %s and cannot be acquired", sessionID, s.state),
		}
	}
}

func (m *Manager) acquireAny(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.state == StateIdle && !s.tainted {
			s.state = StateBusy
			s.lastUsedAt = time.Now()
			m.mu.Unlock()
			return s, nil
		}
	}
	m.mu.Unlock()

	// No idle session: claim a slot, waiting FIFO up to the acquire timeout.
	waitCtx := ctx
	if m.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.AcquireTimeout)
		defer cancel()
	}
	waitStart := time.Now()
	if err := m.slots.acquire(waitCtx); err != nil {
		return nil, fmt.Errorf("%w: no session slot available within wait timeout", protocol.ErrPoolExhausted)
	}
	m.metrics.ObservePoolWait(time.Since(waitStart))

	s, err := m.create(SessionOptions{
		Headless: m.opts.Headless,
		Viewport: &m.opts.Viewport,
		Timeout:  DefaultTimeout,
	}, StateBusy)
	if err != nil {
		m.slots.release()
		return nil, err
	}
	return s, nil
}

// StartSession explicitly creates a session and leaves it Idle, returning its
// snapshot. Used by the start_session tool so clients can pin work to a known
// session id.
func (m *Manager) StartSession(ctx context.Context, opts SessionOptions) (SessionInfo, error) {
	waitCtx := ctx
	if m.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.AcquireTimeout)
		defer cancel()
	}
	if err := m.slots.acquire(waitCtx); err != nil {
		return SessionInfo{}, fmt.Errorf("%w: no session slot available within wait timeout", protocol.ErrPoolExhausted)
	}

	s, err := m.create(opts, StateIdle)
	if err != nil {
		m.slots.release()
		return SessionInfo{}, err
	}

	m.mu.Lock()
	info := s.snapshotLocked()
	m.mu.Unlock()
	return info, nil
}

// create launches engine resources for a new session. The caller must already
// hold a pool slot. The session is registered in Creating state so capacity
// accounting stays correct while the launch runs outside the lock.
func (m *Manager) create(opts SessionOptions, finalState State) (*Session, error) {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session manager not initialized", protocol.ErrEngineFault)
	}
	s := &Session{
		ID:        uuid.New().String(),
		state:     StateCreating,
		opTimeout: opts.Timeout,
		headless:  opts.Headless,
		guard:     m.opts.Guard,
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	browser, context, page, err := m.launch(opts)

	m.mu.Lock()
	if err != nil {
		s.state = StateClosed
		for _, ch := range s.waiters {
			ch <- fmt.Errorf("%w: session %s failed to launch", protocol.ErrEngineFault, s.ID)
		}
		s.waiters = nil
		delete(m.sessions, s.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: failed to launch browser: %v", protocol.ErrEngineFault, err)
	}
	now := time.Now()
	s.browser = browser
	s.context = context
	s.page = page
	s.CreatedAt = now
	s.lastUsedAt = now
	s.setCurrentURL("about:blank")
	s.state = finalState

	// A caller may have queued on the session while it was still launching.
	// Sent under the lock for the same reason as the Release handoff.
	if finalState == StateIdle && len(s.waiters) > 0 {
		head := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.state = StateBusy
		head <- nil
	}
	m.mu.Unlock()

	m.metrics.SessionCreated()
	m.logger.Debug("session created",
		zap.String("session_id", s.ID),
		zap.Bool("headless", opts.Headless))
	return s, nil
}

func (m *Manager) launch(opts SessionOptions) (playwright.Browser, playwright.BrowserContext, playwright.Page, error) {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--no-sandbox", "--disable-setuid-sandbox"},
	}
	browser, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chromium launch: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		return nil, nil, nil, fmt.Errorf("browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, nil, nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	return browser, context, page, nil
}

// Release returns a borrowed session to the manager. Exactly one Release must
// follow every successful Acquire, on every exit path.
//
// OutcomeSuccess hands the session to the next queued waiter or returns it to
// Idle. OutcomeTainted and OutcomeFault destroy the session: a possibly
// inconsistent or crashed engine is never reused.
func (m *Manager) Release(s *Session, outcome Outcome) {
	m.mu.Lock()

	if s.state != StateBusy {
		// Double release or release after close; nothing to do.
		m.mu.Unlock()
		m.logger.Warn("release of session not in busy state",
			zap.String("session_id", s.ID),
			zap.String("state", s.state.String()))
		return
	}

	if outcome != OutcomeSuccess {
		s.tainted = true
	}

	if s.tainted {
		faulted := outcome == OutcomeFault
		teardown := m.closeLocked(s, faulted)
		m.mu.Unlock()
		teardown()
		m.metrics.SessionClosed(false, faulted)
		return
	}

	s.lastUsedAt = time.Now()
	if len(s.waiters) > 0 {
		// Handoff: session stays Busy, next arrival proceeds. The send must
		// happen under the lock: a waiter whose deadline just expired drains
		// its channel under this same lock, so an after-unlock send could
		// land with no receiver and strand the session Busy forever.
		head := s.waiters[0]
		s.waiters = s.waiters[1:]
		head <- nil
		m.mu.Unlock()
		return
	}

	s.state = StateIdle
	m.mu.Unlock()
}

// closeLocked moves a session to Closing, fails any queued waiters, removes
// it from the table, and frees its pool slot. The caller holds the manager
// lock and must invoke the returned teardown after releasing it: engine
// teardown can take seconds and must not stall the pool.
func (m *Manager) closeLocked(s *Session, faulted bool) func() {
	if faulted {
		s.state = StateFaulted
	}
	s.state = StateClosing

	for _, ch := range s.waiters {
		ch <- fmt.Errorf("%w: session %s was closed before the queued operation could run", protocol.ErrEngineFault, s.ID)
	}
	s.waiters = nil

	page, context, browser := s.page, s.context, s.browser
	s.page, s.context, s.browser = nil, nil, nil

	delete(m.sessions, s.ID)
	m.slots.release()

	m.logger.Debug("session closed",
		zap.String("session_id", s.ID),
		zap.Bool("faulted", faulted))

	return func() {
		// Errors are ignored, the resources are going away regardless.
		if page != nil {
			_ = page.Close()
		}
		if context != nil {
			_ = context.Close()
		}
		if browser != nil {
			_ = browser.Close()
		}
		m.mu.Lock()
		s.state = StateClosed
		m.mu.Unlock()
	}
}

// Close explicitly closes an idle session. Busy sessions cannot be closed
// out from under their holder.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()

	s, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("session %q not found", sessionID)
	}
	if s.state != StateIdle {
		state := s.state
		m.mu.Unlock()
		return fmt.Errorf("session %q is %s and cannot be closed", sessionID, state)
	}

	teardown := m.closeLocked(s, false)
	m.mu.Unlock()
	teardown()
	m.metrics.SessionClosed(false, false)
	return nil
}

// List returns snapshots of all live sessions.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.snapshotLocked())
	}
	return infos
}

// LiveCount returns the number of sessions currently Idle or Busy.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, s := range m.sessions {
		if s.state == StateIdle || s.state == StateBusy {
			count++
		}
	}
	return count
}

// RunReaper periodically closes idle-expired sessions until ctx ends. This is
// the sole mechanism preventing unbounded resource growth from clients that
// start sessions and never return.
func (m *Manager) RunReaper(ctx context.Context) {
	interval := m.opts.ReapInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.reap(); n > 0 {
				m.logger.Info("reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}

// reap closes every Idle session whose last use exceeds the idle threshold
// and returns how many it closed.
func (m *Manager) reap() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	cutoff := time.Now().Add(-m.opts.IdleTimeout)
	var teardowns []func()
	for _, s := range m.sessions {
		if s.state == StateIdle && s.lastUsedAt.Before(cutoff) {
			teardowns = append(teardowns, m.closeLocked(s, false))
		}
	}
	m.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
		m.metrics.SessionClosed(true, false)
	}
	return len(teardowns)
}

// Shutdown closes all sessions and stops the driver.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	var teardowns []func()
	for _, s := range m.sessions {
		teardowns = append(teardowns, m.closeLocked(s, false))
	}
	m.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
	}

	m.mu.Lock()
	var err error
	if m.initialized && m.playwright != nil {
		if stopErr := m.playwright.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop playwright: %w", stopErr)
		}
		m.initialized = false
	}
	m.mu.Unlock()
	return err
}

// Guard returns the navigation allowlist guard sessions validate against.
func (m *Manager) Guard() *urlguard.Guard {
	return m.opts.Guard
}

// snapshotLocked builds a SessionInfo; the caller holds the manager lock.
func (s *Session) snapshotLocked() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		State:      s.state.String(),
		CurrentURL: s.CurrentURL(),
		Headless:   s.headless,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.lastUsedAt,
	}
}
