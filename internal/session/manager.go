// Package session keeps one selection context per operator and the flow
// that moves it between steps.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/observe"
	"github.com/google/uuid"
)

// MaxSessions limits concurrent sessions.
const MaxSessions = 100

// SessionMaxAge is the default idle time after which a session is dropped.
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow protects recently used sessions from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

// ErrTooManySessions is returned by Create when every slot is busy capturing.
var ErrTooManySessions = errors.New("too many active sessions")

// Manager holds the live sessions.
type Manager struct {
	sessions map[string]*Context
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	metrics  *observe.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics tracks the active session gauge.
func WithMetrics(m *observe.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(mgr *Manager) { mgr.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) { mgr.now = now }
}

// NewManager creates an empty manager for sessions over cat.
func NewManager(cat *catalog.Catalog, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Context),
		catalog:  cat,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create starts a session with the catalog defaults selected. At capacity
// the least recently used idle session is evicted.
func (m *Manager) Create() (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= MaxSessions && !m.evictOldestLocked() {
		return nil, ErrTooManySessions
	}

	c := newContext(uuid.New().String(), m.catalog, m.now())
	m.sessions[c.id] = c
	m.metrics.SessionOpened(context.Background())
	m.logger.Debug("session created", "session", c.id)
	return c, nil
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.touch(m.now())
	return c, true
}

// Delete ends a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	m.metrics.SessionClosed(context.Background())
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions idle for longer than maxAge, skipping
// those used within SessionKeepAliveWindow or currently capturing. It
// returns how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, c := range m.sessions {
		last, idle := c.idleSince()
		if !idle || last.After(keepAliveCutoff) {
			continue
		}
		if last.Before(cutoff) {
			delete(m.sessions, id)
			m.metrics.SessionClosed(context.Background())
			removed++
			m.logger.Info("cleaned up idle session", "session", id, "idle", now.Sub(last).Round(time.Second))
		}
	}
	return removed
}

func (m *Manager) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, c := range m.sessions {
		last, idle := c.idleSince()
		if !idle {
			continue
		}
		if oldestID == "" || last.Before(oldest) {
			oldestID, oldest = id, last
		}
	}
	if oldestID == "" {
		return false
	}
	delete(m.sessions, oldestID)
	m.metrics.SessionClosed(context.Background())
	m.logger.Info("evicted session at capacity", "session", oldestID)
	return true
}
