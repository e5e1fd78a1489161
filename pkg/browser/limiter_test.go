package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_ImmediateAdmissionUnderCapacity(t *testing.T) {
	l := newLimiter(2)

	require.NoError(t, l.acquire(context.Background()))
	require.NoError(t, l.acquire(context.Background()))
	assert.Equal(t, 2, l.used())
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := newLimiter(1)

	assert.True(t, l.tryAcquire())
	assert.False(t, l.tryAcquire())

	l.release()
	assert.True(t, l.tryAcquire())
}

func TestLimiter_WaitTimeout(t *testing.T) {
	l := newLimiter(1)
	require.NoError(t, l.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The timed-out waiter must not occupy the wait list.
	l.release()
	assert.True(t, l.tryAcquire())
}

func TestLimiter_ReleaseUnblocksWaiter(t *testing.T) {
	l := newLimiter(1)
	require.NoError(t, l.acquire(context.Background()))

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		acquired <- l.acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	l.release()

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not admitted after release")
	}
	assert.Equal(t, 1, l.used())
}

func TestLimiter_FIFOOrder(t *testing.T) {
	l := newLimiter(1)
	require.NoError(t, l.acquire(context.Background()))

	const waiters = 5
	var mu sync.Mutex
	var order []int
	ready := make(chan struct{}, waiters)
	done := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		i := i
		go func() {
			ready <- struct{}{}
			if err := l.acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done <- struct{}{}
		}()
		// Stagger arrivals so queue order matches i.
		time.Sleep(20 * time.Millisecond)
	}
	for i := 0; i < waiters; i++ {
		<-ready
	}

	for i := 0; i < waiters; i++ {
		l.release()
		<-done
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLimiter_CapacityNeverExceeded(t *testing.T) {
	const capacity = 3
	l := newLimiter(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	held := 0
	maxHeld := 0

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			held++
			if held > maxHeld {
				maxHeld = held
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			held--
			mu.Unlock()
			l.release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxHeld, capacity)
	assert.Equal(t, 0, l.used())
}
