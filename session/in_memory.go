package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgate/core"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")

// ErrExists is returned by Create when the id is already taken.
var ErrExists = errors.New("session already exists")

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access. Each returned
// session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create allocates a new session with the given id.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, sessionID)
	}
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess.Clone(), nil
}

// Get returns a clone of an existing session.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.AddEvent(ev)
	return nil
}

// SetMetadata merges metadata into an existing session.
func (s *InMemoryStore) SetMetadata(sessionID string, metadata map[string]string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	for k, v := range metadata {
		sess.SetMetadata(k, v)
	}
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) lookup(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return sess, nil
}
