package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anglenexus/nexus/internal/model/chat"
)

var (
	ErrAgentRequired   = errors.New("agent id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultWindow is how many recent turns are replayed to the model.
const DefaultWindow = 6

type sessionKey struct {
	agentID string
	id      string
}

// Service keeps the server side of each conversation in memory. A session is
// scoped to one agent, so a client reusing its session id across agents gets
// separate histories.
type Service struct {
	mu       sync.RWMutex
	sessions map[sessionKey]chat.Session
	messages map[sessionKey][]chat.Message
	now      func() time.Time
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		sessions: make(map[sessionKey]chat.Session),
		messages: make(map[sessionKey][]chat.Message),
		now:      time.Now,
	}
}

// EnsureSession returns the session sessionID of agentID, creating it on
// first use. An empty sessionID provisions an anonymous session.
func (s *Service) EnsureSession(_ context.Context, agentID, sessionID string) (chat.Session, error) {
	if agentID == "" {
		return chat.Session{}, ErrAgentRequired
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	key := sessionKey{agentID: agentID, id: sessionID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session, nil
	}

	session := chat.Session{
		ID:        sessionID,
		AgentID:   agentID,
		CreatedAt: s.now().UTC(),
	}
	s.sessions[key] = session
	s.messages[key] = make([]chat.Message, 0, 16)
	return session, nil
}

// SaveMessage appends turns to the session history.
func (s *Service) SaveMessage(_ context.Context, session chat.Session, messages ...chat.Message) error {
	key := sessionKey{agentID: session.AgentID, id: session.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	s.messages[key] = append(s.messages[key], messages...)
	return nil
}

// GetSession retrieves a session by agent and identifier.
func (s *Service) GetSession(_ context.Context, agentID, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey{agentID: agentID, id: sessionID}]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns every stored turn of the session.
func (s *Service) LoadTranscript(ctx context.Context, session chat.Session) ([]chat.Message, error) {
	return s.History(ctx, session, 0)
}

// History returns the last window turns, oldest first. A window of zero or
// less returns everything.
func (s *Service) History(_ context.Context, session chat.Session, window int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionKey{agentID: session.AgentID, id: session.ID}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
