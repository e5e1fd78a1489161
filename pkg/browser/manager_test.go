package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/security/urlguard"
)

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	guard, err := urlguard.NewGuard(nil)
	require.NoError(t, err)
	return NewManager(ManagerOptions{
		Capacity:       capacity,
		AcquireTimeout: 100 * time.Millisecond,
		Guard:          guard,
	})
}

// injectSession registers a session in the given state and consumes a pool
// slot, mirroring what create does without launching an engine.
func injectSession(t *testing.T, m *Manager, id string, state State) *Session {
	t.Helper()
	require.True(t, m.slots.tryAcquire(), "pool has no free slot for injected session")

	now := time.Now()
	s := &Session{
		ID:        id,
		state:     state,
		CreatedAt: now,
		guard:     m.opts.Guard,
	}
	s.lastUsedAt = now
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

func TestManagerAcquire_UnknownSession(t *testing.T) {
	m := newTestManager(t, 2)

	_, err := m.Acquire(context.Background(), "no-such-session")
	require.Error(t, err)

	var fieldErr *protocol.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "session_id", fieldErr.Field)
	assert.True(t, errors.Is(err, protocol.ErrInvalidRequest))
}

func TestManagerAcquire_IdleSessionBecomesBusy(t *testing.T) {
	m := newTestManager(t, 2)
	injectSession(t, m, "s1", StateIdle)

	s, err := m.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)

	m.mu.Lock()
	state := s.state
	m.mu.Unlock()
	assert.Equal(t, StateBusy, state)
}

func TestManagerAcquire_QueuesBehindBusySession(t *testing.T) {
	m := newTestManager(t, 2)
	holder := injectSession(t, m, "s1", StateBusy)

	got := make(chan *Session, 1)
	go func() {
		s, err := m.Acquire(context.Background(), "s1")
		if err != nil {
			got <- nil
			return
		}
		got <- s
	}()

	// Wait for the waiter to enqueue, then release the holder.
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(holder.waiters) == 1
	}, time.Second, 5*time.Millisecond)

	m.Release(holder, OutcomeSuccess)

	select {
	case s := <-got:
		require.NotNil(t, s)
		assert.Equal(t, "s1", s.ID)
	case <-time.After(time.Second):
		t.Fatal("queued acquire was never handed the session")
	}

	// Handoff keeps the session busy for the new holder.
	m.mu.Lock()
	state := holder.state
	m.mu.Unlock()
	assert.Equal(t, StateBusy, state)
}

func TestManagerAcquire_QueueOrderIsArrival(t *testing.T) {
	m := newTestManager(t, 2)
	holder := injectSession(t, m, "s1", StateBusy)

	const waiterCount = 4
	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, waiterCount)

	for i := 0; i < waiterCount; i++ {
		i := i
		go func() {
			s, err := m.Acquire(context.Background(), "s1")
			if err != nil {
				done <- struct{}{}
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			m.Release(s, OutcomeSuccess)
			done <- struct{}{}
		}()
		// Stagger arrivals so queue position matches i.
		require.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return len(holder.waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	m.Release(holder, OutcomeSuccess)
	for i := 0; i < waiterCount; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("queued acquires did not all complete")
		}
	}

	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestManagerAcquire_QueuedDeadlineExpires(t *testing.T) {
	m := newTestManager(t, 2)
	holder := injectSession(t, m, "s1", StateBusy)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := m.Acquire(ctx, "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrOperationTimeout))

	// The expired waiter must not linger in the queue.
	m.mu.Lock()
	waiting := len(holder.waiters)
	m.mu.Unlock()
	assert.Zero(t, waiting)
}

func TestManagerRelease_CancelRaceNeverStrandsSession(t *testing.T) {
	m := newTestManager(t, 1)
	s := injectSession(t, m, "s1", StateIdle)

	for i := 0; i < 200; i++ {
		held, err := m.Acquire(context.Background(), "s1")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			got, acquireErr := m.Acquire(ctx, "s1")
			if acquireErr == nil {
				m.Release(got, OutcomeSuccess)
			}
		}()

		require.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return len(s.waiters) == 1
		}, time.Second, time.Millisecond)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); cancel() }()
		go func() { defer wg.Done(); m.Release(held, OutcomeSuccess) }()
		wg.Wait()
		<-done

		// Whichever side won the race, the session must settle idle
		// with an empty queue, never busy with no holder.
		require.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return s.state == StateIdle && len(s.waiters) == 0
		}, time.Second, time.Millisecond)
	}
}

func TestManagerAcquire_PoolExhausted(t *testing.T) {
	m := newTestManager(t, 1)
	injectSession(t, m, "s1", StateBusy)

	start := time.Now()
	_, err := m.Acquire(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrPoolExhausted))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestManagerAcquire_ReusesIdleSession(t *testing.T) {
	m := newTestManager(t, 1)
	injectSession(t, m, "s1", StateIdle)

	s, err := m.Acquire(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
}

func TestManagerRelease_TaintedSessionIsDestroyed(t *testing.T) {
	m := newTestManager(t, 1)
	s := injectSession(t, m, "s1", StateBusy)

	m.Release(s, OutcomeTainted)

	assert.Zero(t, m.LiveCount())
	assert.Zero(t, m.slots.used(), "slot must be freed when a tainted session is destroyed")
}

func TestManagerRelease_FaultFreesSlotForNewSessions(t *testing.T) {
	m := newTestManager(t, 1)
	s := injectSession(t, m, "s1", StateBusy)

	m.Release(s, OutcomeFault)

	// Capacity is available again immediately.
	assert.True(t, m.slots.tryAcquire())
}

func TestManagerRelease_FailsQueuedWaitersOnClose(t *testing.T) {
	m := newTestManager(t, 1)
	holder := injectSession(t, m, "s1", StateBusy)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background(), "s1")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(holder.waiters) == 1
	}, time.Second, 5*time.Millisecond)

	m.Release(holder, OutcomeFault)

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, protocol.ErrEngineFault))
	case <-time.After(time.Second):
		t.Fatal("queued waiter was never failed")
	}
}

func TestManagerRelease_DoubleReleaseIsNoop(t *testing.T) {
	m := newTestManager(t, 1)
	s := injectSession(t, m, "s1", StateBusy)

	m.Release(s, OutcomeSuccess)
	m.Release(s, OutcomeSuccess)

	m.mu.Lock()
	state := s.state
	m.mu.Unlock()
	assert.Equal(t, StateIdle, state)
	assert.Equal(t, 1, m.LiveCount())
}

func TestManagerClose(t *testing.T) {
	m := newTestManager(t, 2)
	injectSession(t, m, "idle", StateIdle)
	injectSession(t, m, "busy", StateBusy)

	require.NoError(t, m.Close("idle"))
	assert.Error(t, m.Close("busy"), "busy session must not be closed under its holder")
	assert.Error(t, m.Close("missing"))
	assert.Equal(t, 1, m.LiveCount())
}

func TestManagerClose_EngineTeardownRunsOutsideLock(t *testing.T) {
	m := newTestManager(t, 2)
	s := injectSession(t, m, "s1", StateIdle)

	m.mu.Lock()
	teardown := m.closeLocked(s, false)
	// Bookkeeping finishes under the lock: the session is gone from the
	// pool and its slot is free before any engine call happens.
	assert.Equal(t, StateClosing, s.state)
	_, tracked := m.sessions["s1"]
	assert.False(t, tracked)
	assert.Zero(t, m.slots.used())
	m.mu.Unlock()

	// The pool stays usable while the engine teardown is pending.
	injectSession(t, m, "s2", StateIdle)
	_, err := m.Acquire(context.Background(), "s2")
	require.NoError(t, err)

	teardown()

	m.mu.Lock()
	state := s.state
	m.mu.Unlock()
	assert.Equal(t, StateClosed, state)
}

func TestManagerReap(t *testing.T) {
	guard, err := urlguard.NewGuard(nil)
	require.NoError(t, err)
	m := NewManager(ManagerOptions{
		Capacity:    2,
		IdleTimeout: 50 * time.Millisecond,
		Guard:       guard,
	})

	stale := injectSession(t, m, "stale", StateIdle)
	m.mu.Lock()
	stale.lastUsedAt = time.Now().Add(-time.Minute)
	m.mu.Unlock()
	injectSession(t, m, "fresh", StateIdle)

	require.Equal(t, 1, m.reap())
	assert.Equal(t, 1, m.LiveCount())

	infos := m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "fresh", infos[0].ID)
}

func TestManagerReap_SkipsBusySessions(t *testing.T) {
	guard, err := urlguard.NewGuard(nil)
	require.NoError(t, err)
	m := NewManager(ManagerOptions{
		Capacity:    1,
		IdleTimeout: time.Nanosecond,
		Guard:       guard,
	})

	injectSession(t, m, "busy", StateBusy)
	time.Sleep(time.Millisecond)
	assert.Zero(t, m.reap())
	assert.Equal(t, 1, m.LiveCount())
}

func TestManagerList(t *testing.T) {
	m := newTestManager(t, 2)
	s := injectSession(t, m, "s1", StateIdle)
	s.setCurrentURL("https://assessor.example.gov/search")

	infos := m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "s1", infos[0].ID)
	assert.Equal(t, "idle", infos[0].State)
	assert.Equal(t, "https://assessor.example.gov/search", infos[0].CurrentURL)
}

func TestManagerCreate_RequiresInitialize(t *testing.T) {
	m := newTestManager(t, 1)

	_, err := m.Acquire(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrEngineFault))
	// The slot claimed for the failed create must be returned.
	assert.Zero(t, m.slots.used())
}

func TestManagerIntegration_SessionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}

	guard, err := urlguard.NewGuard(nil)
	require.NoError(t, err)
	m := NewManager(ManagerOptions{
		Capacity:       2,
		AcquireTimeout: 30 * time.Second,
		Headless:       true,
		InstallDrivers: true,
		Guard:          guard,
	})
	require.NoError(t, m.Initialize())
	defer m.Shutdown()

	info, err := m.StartSession(context.Background(), SessionOptions{Headless: true})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "idle", info.State)

	s, err := m.Acquire(context.Background(), info.ID)
	require.NoError(t, err)

	err = s.Navigate("https://example.com", NavigateOptions{})
	require.NoError(t, err)
	assert.Contains(t, s.CurrentURL(), "example.com")

	m.Release(s, OutcomeSuccess)
	require.NoError(t, m.Close(info.ID))
	assert.Zero(t, m.LiveCount())
}
