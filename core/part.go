package core

import "strings"

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment, e.g. grounding or provider metadata
// that carries no user-visible text.
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, system)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Roles understood by the runtime and the model adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// NewTextContent builds a single-part text content for role.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// TextSegments returns the text of every TextPart in order, including empty ones.
func (c Content) TextSegments() []string {
	segments := make([]string, 0, len(c.Parts))
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			segments = append(segments, tp.Text)
		}
	}
	return segments
}

// Text concatenates all text segments.
func (c Content) Text() string {
	return strings.Join(c.TextSegments(), "")
}
