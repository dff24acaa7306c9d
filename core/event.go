package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the unit of communication between the runtime and its callers.
// After emission it should be treated as immutable. It captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Streaming hints (Partial, TurnComplete)
//   - Error metadata
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string            `json:"id"`
	InvocationID string            `json:"invocation_id"`
	Author       string            `json:"author"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorCode    *string           `json:"error_code,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewMessageEvent creates a non-user assistant message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	c := NewTextContent(RoleAssistant, message)
	e.Content = &c
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, RoleUser)
	e.Content = content
	return e
}

// NewID generates a new unique identifier for events, sessions and runs.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming / incomplete
// fragment that will be followed by additional events composing the final
// assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsFinalResponse reports whether the event terminates the assistant turn.
// Partial fragments are never final; an explicit TurnComplete=false keeps the
// turn open for runtimes that emit several complete messages per turn.
func (e Event) IsFinalResponse() bool {
	if e.IsPartial() {
		return false
	}
	if e.TurnComplete != nil {
		return *e.TurnComplete
	}
	return true
}

// HasError reports whether the runtime attached an error to the event.
func (e Event) HasError() bool { return e.ErrorCode != nil || e.ErrorMessage != nil }

// TextSegments returns the text segments carried by the event content.
func (e Event) TextSegments() []string {
	if e.Content == nil {
		return nil
	}
	return e.Content.TextSegments()
}

// FirstText returns the first text segment that is not blank and whether one exists.
func (e Event) FirstText() (string, bool) {
	for _, s := range e.TextSegments() {
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}
