// Package session owns the set of monitored honeypot sessions, one per
// configured credential.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"honeypot/internal/domain"
)

// Factory constructs an unopened session. label identifies the session in
// logs and must not contain the token.
type Factory func(label, token string) domain.MonitoredSession

// Snapshot is a point-in-time view of one session.
type Snapshot struct {
	Label    string
	State    domain.SessionState
	Username string
}

// Manager turns credentials into independent monitored sessions that share
// the same routing behavior.
type Manager struct {
	tokens  []string
	factory Factory
	route   domain.InboundHandler
	bus     domain.EventBus // nil = no lifecycle events
	logger  *slog.Logger

	mu       sync.Mutex
	sessions []domain.MonitoredSession
	wg       sync.WaitGroup
}

// NewManager validates the credential list. An empty list is a startup error.
func NewManager(tokens []string, factory Factory, route domain.InboundHandler, bus domain.EventBus, logger *slog.Logger) (*Manager, error) {
	if len(tokens) == 0 {
		return nil, domain.NewDomainError("session.NewManager", domain.ErrNoCredentials, "at least one token is required")
	}
	if factory == nil || route == nil {
		return nil, domain.NewDomainError("session.NewManager", domain.ErrInvalidInput, "factory and route are required")
	}
	return &Manager{
		tokens:  tokens,
		factory: factory,
		route:   route,
		bus:     bus,
		logger:  logger,
	}, nil
}

// Start creates one session per token and begins authenticating each of them
// in the background. It does not wait for any session to become ready and
// returns the number of sessions created.
func (m *Manager) Start(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, token := range m.tokens {
		label := fmt.Sprintf("session-%d", i+1)
		sess := m.factory(label, token)
		m.sessions = append(m.sessions, sess)

		m.wg.Add(1)
		go m.open(ctx, sess)
	}

	m.logger.Info("honeypot started", "sessions", len(m.sessions))
	return len(m.sessions)
}

func (m *Manager) open(ctx context.Context, sess domain.MonitoredSession) {
	defer m.wg.Done()
	log := m.logger.With("session", sess.Label())

	defer func() {
		if r := recover(); r != nil {
			log.Error("session open panicked", "panic", r)
		}
	}()

	if err := sess.Open(ctx, m.observers(log)); err != nil {
		log.Error("session authentication failed", "code", domain.ErrorCodeOf(err), "error", err)
		m.emit(ctx, domain.EventSessionFailed, sess.Label(), map[string]string{"error": err.Error()})
	}
}

func (m *Manager) observers(log *slog.Logger) domain.Observers {
	return domain.Observers{
		Ready: func(ctx context.Context, sess domain.Session) {
			self := sess.Self()
			log.Info("session ready", "user", self.Username, "user_id", self.ID)
			m.emit(ctx, domain.EventSessionReady, sess.Label(), self)
		},
		Message:      m.route,
		Relationship: m.route,
		Closed: func(sess domain.Session, err error) {
			if err != nil {
				log.Warn("session closed", "error", err)
			} else {
				log.Info("session closed")
			}
			m.emit(context.Background(), domain.EventSessionClosed, sess.Label(), nil)
		},
	}
}

// Sessions returns a snapshot of every session in creation order.
func (m *Manager) Sessions() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Snapshot{Label: s.Label(), State: s.State(), Username: s.Self().Username})
	}
	return out
}

// Close terminates every session and waits for pending opens to return.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Label(), err))
		}
	}
	m.wg.Wait()
	return errors.Join(errs...)
}

func (m *Manager) emit(ctx context.Context, t domain.EventType, label string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(ctx, t, label, payload)
}
