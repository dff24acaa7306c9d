package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Metadata keys recorded on every session created by a Runner.
const (
	MetadataAppName = "app_name"
	MetadataUserID  = "user_id"
)

// Session is one user's conversation: descriptive metadata plus the ordered
// event history fed back to the model. It is safe for concurrent access;
// readers get copies.
type Session struct {
	ID       string            `json:"id"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`

	mu sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Created: now, Updated: now, Metadata: map[string]string{}}
}

// SetMetadata records a descriptive key/value pair (app name, user id, ...).
func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
	s.Updated = time.Now()
}

// GetMetadata returns a metadata value or "".
func (s *Session) GetMetadata(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Metadata[key]
}

// AddEvent appends ev to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the full history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Events)
}

// GetConversationHistory returns at most limit of the most recent
// conversational events: user or assistant content, no partials, no error
// events. A limit <= 0 returns the whole history.
func (s *Session) GetConversationHistory(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []Event
	for _, ev := range s.Events {
		if isConversational(ev) {
			history = append(history, ev)
		}
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func isConversational(ev Event) bool {
	if ev.Content == nil || ev.IsPartial() || ev.HasError() {
		return false
	}
	return ev.Content.Role == RoleUser || ev.Content.Role == RoleAssistant
}

// Clone returns a copy that can be mutated independently.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Session{
		ID:       s.ID,
		Events:   slices.Clone(s.Events),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: maps.Clone(s.Metadata),
	}
}

// SessionStore persists sessions and their evolving event history.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	SetMetadata(sessionID string, metadata map[string]string) error
}
