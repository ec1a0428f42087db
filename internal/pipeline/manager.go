package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/clock"
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// Manager owns every live session and closes the ones left idle.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	ledger   *ledger.Ledger
	deps     Deps
	log      zerolog.Logger
}

// NewManager creates a Manager. deps is the template handed to each new
// session. deps.Rand is ignored: every session seeds its own source since
// rand.Rand is not safe for concurrent use.
func NewManager(cfg Config, l *ledger.Ledger, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		ledger:   l,
		deps:     deps,
		log:      deps.Logger,
	}
}

// Config returns the pipeline configuration sessions are created with.
func (m *Manager) Config() Config { return m.cfg }

// Create opens a new session for userID.
func (m *Manager) Create(ctx context.Context, userID string) (*Session, error) {
	book, err := m.ledger.Book(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	id := uuid.New().String()
	deps := m.deps
	deps.Rand = nil
	s := NewSession(id, userID, m.cfg, book, deps)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Info().Str("session_id", id).Str("user_id", userID).Msg("session created")
	return s, nil
}

// Get returns the user's session. A session owned by someone else is
// reported as not found.
func (m *Manager) Get(userID, sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || s.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the user's sessions.
func (m *Manager) List(userID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out
}

// Close shuts down one of the user's sessions.
func (m *Manager) Close(userID, sessionID string) error {
	s, err := m.Get(userID, sessionID)
	if err != nil {
		return err
	}
	m.remove(sessionID)
	s.Close()
	return nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes every session inactive for longer than the configured
// idle timeout as of now. It returns how many were closed.
func (m *Manager) ReapIdle(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	m.mu.RLock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.cfg.IdleTimeout {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		m.remove(s.ID())
		s.Close()
		m.log.Info().Str("session_id", s.ID()).Msg("closed idle session")
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReapIdle(m.deps.Clock.Now())
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
