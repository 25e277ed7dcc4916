package core

import (
	"fmt"
	"sync"
)

// Status is the pipeline's progress state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusParsing    Status = "parsing"
	StatusValidating Status = "validating"
	StatusImporting  Status = "importing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// transitions lists every legal move. idle is reachable from every state
// through reset or cancel; complete and error end a run.
var transitions = map[Status][]Status{
	StatusIdle:       {StatusParsing},
	StatusParsing:    {StatusValidating, StatusError, StatusIdle},
	StatusValidating: {StatusImporting, StatusIdle},
	StatusImporting:  {StatusComplete, StatusError, StatusIdle},
	StatusComplete:   {StatusIdle},
	StatusError:      {StatusIdle},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// ImportProgress is the caller-visible state of the current run.
type ImportProgress struct {
	Status        Status            `json:"status"`
	TotalRows     int               `json:"totalRows"`
	ProcessedRows int               `json:"processedRows"`
	CurrentRow    int               `json:"currentRow"`
	SuccessCount  int               `json:"successCount"`
	ErrorCount    int               `json:"errorCount"`
	WarningCount  int               `json:"warningCount"`
	Message       string            `json:"message,omitempty"`
	Errors        []ValidationIssue `json:"errors,omitempty"`
}

// Percent returns processed rows as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.ProcessedRows * 100) / p.TotalRows
}

// ProgressTracker owns an ImportProgress and fans updates out to listeners.
// Every change is broadcast without blocking. A slow listener loses its
// oldest buffered updates, never the latest one.
type ProgressTracker struct {
	mu        sync.Mutex
	current   ImportProgress
	listeners []chan ImportProgress
}

// NewProgressTracker returns a tracker in the idle state.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{current: ImportProgress{Status: StatusIdle}}
}

// Snapshot returns a copy of the current progress.
func (t *ProgressTracker) Snapshot() ImportProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *ProgressTracker) snapshotLocked() ImportProgress {
	p := t.current
	if len(p.Errors) > 0 {
		p.Errors = append([]ValidationIssue(nil), p.Errors...)
	}
	return p
}

// Transition moves to next, or returns ErrIllegalTransition. Entering parsing
// starts a new run and clears the previous counters.
func (t *ProgressTracker) Transition(next Status, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.current.Status
	if !from.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
	}

	if next == StatusParsing {
		t.current = ImportProgress{}
	}
	t.current.Status = next
	t.current.Message = message
	t.notifyLocked()
	return nil
}

// Update applies fn to the progress and broadcasts the result.
func (t *ProgressTracker) Update(fn func(p *ImportProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.current)
	t.notifyLocked()
}

// Clear returns to idle with zeroed counters. Clearing while idle is a no-op.
func (t *ProgressTracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.current.Status
	if from == StatusIdle {
		return nil
	}
	if !from.CanTransition(StatusIdle) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, StatusIdle)
	}

	t.current = ImportProgress{Status: StatusIdle}
	t.notifyLocked()
	return nil
}

// Subscribe returns a channel that receives the current progress immediately
// and every change after it. Call the returned func to stop listening.
func (t *ProgressTracker) Subscribe() (<-chan ImportProgress, func()) {
	ch := make(chan ImportProgress, 16)

	t.mu.Lock()
	t.listeners = append(t.listeners, ch)
	ch <- t.snapshotLocked()
	t.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, l := range t.listeners {
				if l == ch {
					t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, unsubscribe
}

// Close closes every listener channel.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.listeners {
		close(ch)
	}
	t.listeners = nil
}

func (t *ProgressTracker) notifyLocked() {
	snap := t.snapshotLocked()
	for _, ch := range t.listeners {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full buffer: drop the oldest value so the newest always arrives.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
