package browser

import (
	"context"
	"sync"
)

// limiter is a strict-FIFO slot semaphore bounding the number of live
// sessions. Callers under capacity are admitted immediately; the rest join an
// ordered wait list and receive slots in arrival order as holders release,
// bounded by their own context deadline.
type limiter struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []chan struct{}
}

func newLimiter(capacity int) *limiter {
	return &limiter{capacity: capacity}
}

// acquire claims a slot, blocking in FIFO order until one frees or ctx ends.
func (l *limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.inUse < l.capacity {
		l.inUse++
		l.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		// The releaser transferred its slot; inUse stays constant.
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		// A release may have signaled between ctx expiry and lock
		// acquisition; if so the slot is ours and must be passed on.
		select {
		case <-ch:
			l.releaseLocked()
			l.mu.Unlock()
			return ctx.Err()
		default:
		}
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

// tryAcquire claims a slot only if capacity remains.
func (l *limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inUse < l.capacity {
		l.inUse++
		return true
	}
	return false
}

// release frees a slot, handing it to the head waiter if any.
func (l *limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
}

func (l *limiter) releaseLocked() {
	if len(l.waiters) > 0 {
		head := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(head)
		return
	}
	if l.inUse > 0 {
		l.inUse--
	}
}

// used returns the number of claimed slots.
func (l *limiter) used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}
