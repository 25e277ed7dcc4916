package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("import session not found")

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 30 * time.Minute

// session is one staged import owned by a client.
type session struct {
	id       string
	pipeline *core.Pipeline
	created  time.Time
	expiry   *time.Timer

	mu     sync.Mutex
	result *core.ImportResult
	runErr error
}

// finish records the outcome of a background execute run.
func (s *session) finish(res *core.ImportResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.runErr = err
}

// outcome returns the last execute result and its error.
func (s *session) outcome() (*core.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.runErr
}

// clearOutcome forgets the previous run before a new one starts.
func (s *session) clearOutcome() {
	s.finish(nil, nil)
}

// sessionStore keeps live sessions and expires them after ttl of inactivity.
// A session whose run is still active when its timer fires gets a fresh ttl.
type sessionStore struct {
	newPipeline func() *core.Pipeline
	limiter     *SessionLimiter
	ttl         time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(newPipeline func() *core.Pipeline, limiter *SessionLimiter, ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		newPipeline: newPipeline,
		limiter:     limiter,
		ttl:         ttl,
		sessions:    make(map[string]*session),
	}
}

// create opens a session, waiting for a limiter slot if needed.
func (st *sessionStore) create(ctx context.Context) (*session, error) {
	if err := st.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	s := &session{
		id:       uuid.NewString(),
		pipeline: st.newPipeline(),
		created:  time.Now(),
	}

	st.mu.Lock()
	st.sessions[s.id] = s
	s.expiry = time.AfterFunc(st.ttl, func() { st.expire(s.id) })
	st.mu.Unlock()

	return s, nil
}

// get returns a live session and pushes its expiry out by ttl.
func (st *sessionStore) get(id string) (*session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.expiry.Reset(st.ttl)
	return s, nil
}

// remove closes and forgets a session. It reports whether id was live.
func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
		s.expiry.Stop()
	}
	st.mu.Unlock()

	if !ok {
		return false
	}
	s.pipeline.Close()
	st.limiter.Release()
	return true
}

func (st *sessionStore) expire(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok && s.pipeline.IsActive() {
		s.expiry.Reset(st.ttl)
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()

	if st.remove(id) {
		slog.Info("import session expired", "session_id", id, "age", time.Since(s.created).Round(time.Second))
	}
}

// count returns the number of live sessions.
func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// closeAll drops every session. Used at shutdown.
func (st *sessionStore) closeAll() {
	st.mu.Lock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.Unlock()

	for _, id := range ids {
		st.remove(id)
	}
}
