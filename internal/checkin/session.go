package checkin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionBusy is returned for a scan that arrives while an outcome is still shown.
	ErrSessionBusy = errors.New("scan session is busy")
	// ErrNothingToAcknowledge is returned when acknowledging a session that is waiting.
	ErrNothingToAcknowledge = errors.New("no outcome to acknowledge")
	ErrSessionNotFound      = errors.New("scan session not found")
)

type State string

const (
	Waiting    State = "waiting"
	Deciding   State = "deciding"
	Displaying State = "displaying"
)

// Resolver is satisfied by *Engine.
type Resolver interface {
	Resolve(ctx context.Context, text string) Outcome
}

// Session is one scanning station. It accepts a scan only while Waiting and returns to
// Waiting only when the displayed outcome is acknowledged.
type Session struct {
	ID       string
	OpenedAt time.Time

	resolver Resolver

	mu           sync.Mutex
	state        State
	current      *Outcome
	lastActivity time.Time
	counts       map[Kind]int
}

// SessionView is a point-in-time copy of a session.
type SessionView struct {
	ID           string       `json:"id"`
	State        State        `json:"state"`
	Outcome      *Outcome     `json:"outcome,omitempty"`
	OpenedAt     time.Time    `json:"opened_at"`
	LastActivity time.Time    `json:"last_activity"`
	Counts       map[Kind]int `json:"counts"`
}

func NewSession(resolver Resolver) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		OpenedAt:     now,
		resolver:     resolver,
		state:        Waiting,
		lastActivity: now,
		counts:       make(map[Kind]int),
	}
}

// HandleScan resolves text if the session is waiting, and holds the outcome for display.
func (s *Session) HandleScan(ctx context.Context, text string) (Outcome, error) {
	s.mu.Lock()
	if s.state != Waiting {
		s.mu.Unlock()
		return Outcome{}, ErrSessionBusy
	}
	s.state = Deciding
	s.lastActivity = time.Now()
	s.mu.Unlock()

	out := s.resolver.Resolve(ctx, text)

	s.mu.Lock()
	s.state = Displaying
	s.current = &out
	s.counts[out.Kind]++
	s.lastActivity = time.Now()
	s.mu.Unlock()

	return out, nil
}

// Acknowledge dismisses the displayed outcome so the next scan is accepted.
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Displaying {
		return ErrNothingToAcknowledge
	}
	s.state = Waiting
	s.current = nil
	s.lastActivity = time.Now()
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Kind]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	view := SessionView{
		ID:           s.ID,
		State:        s.state,
		OpenedAt:     s.OpenedAt,
		LastActivity: s.lastActivity,
		Counts:       counts,
	}
	if s.current != nil {
		out := *s.current
		view.Outcome = &out
	}
	return view
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Scanner is a barcode source. It delivers one decoded text at a time and stays paused
// after each delivery until Resume is called.
type Scanner interface {
	Start(ctx context.Context) (<-chan string, error)
	Resume()
	Stop()
}

// Display shows an outcome and returns once it has been acknowledged.
type Display interface {
	Show(ctx context.Context, out Outcome) error
}

// Run drives the session from a scanner until ctx is done or the scanner closes.
func (s *Session) Run(ctx context.Context, scanner Scanner, display Display) error {
	scans, err := scanner.Start(ctx)
	if err != nil {
		return err
	}
	defer scanner.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-scans:
			if !ok {
				return nil
			}
			out, err := s.HandleScan(ctx, text)
			if err != nil {
				scanner.Resume()
				continue
			}
			if err := display.Show(ctx, out); err != nil {
				return err
			}
			if err := s.Acknowledge(); err != nil {
				return err
			}
			scanner.Resume()
		}
	}
}

// SessionManager keeps the scan sessions opened over the API.
type SessionManager struct {
	resolver Resolver

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(resolver Resolver) *SessionManager {
	return &SessionManager{resolver: resolver, sessions: make(map[string]*Session)}
}

func (m *SessionManager) Open() *Session {
	s := NewSession(m.resolver)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Sweep closes sessions idle for longer than maxIdle and returns how many were removed.
func (m *SessionManager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
