package web

// limiter.go caps how many import sessions may be staged at once.
//
// Each session holds a parsed file in memory from preview until it is
// deleted or expires, so the limiter bounds memory rather than CPU. When
// all slots are taken, a new session waits up to maxWait before failing
// with ErrTooManySessions.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySessions is returned when no session slot frees up in time.
var ErrTooManySessions = errors.New("too many import sessions, please try again later")

// DefaultMaxSessions is the default limit for staged sessions.
const DefaultMaxSessions = 8

// DefaultSessionWait is how long to wait for a slot before rejecting.
const DefaultSessionWait = 5 * time.Second

// SessionLimiter is a counting semaphore over import sessions.
type SessionLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewSessionLimiter allows at most maxSessions concurrent sessions.
func NewSessionLimiter(maxSessions int, maxWait time.Duration) *SessionLimiter {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if maxWait <= 0 {
		maxWait = DefaultSessionWait
	}

	return &SessionLimiter{
		slots:   make(chan struct{}, maxSessions),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to maxWait. The caller must Release it
// when the session ends.
func (l *SessionLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManySessions
	}
}

// TryAcquire takes a slot without waiting.
func (l *SessionLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *SessionLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.slots
}

// ActiveCount returns the number of held slots.
func (l *SessionLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *SessionLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// LimiterStatus is a snapshot of limiter occupancy.
type LimiterStatus struct {
	Active      int `json:"active"`
	Available   int `json:"available"`
	MaxSessions int `json:"maxSessions"`
}

// Status reports current occupancy.
func (l *SessionLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:      l.ActiveCount(),
		Available:   l.Available(),
		MaxSessions: cap(l.slots),
	}
}
