package testutil

import (
	"github.com/hupe1980/agentgate/core"
)

// EventBuilder assembles runtime events for tests:
//
//	ev := NewEventBuilder().Partial(true).AssistantText("hel").Build()
//
// Without Partial or TurnComplete the event counts as final.
type EventBuilder struct {
	texts        []string
	extra        []core.Part
	partial      *bool
	turnComplete *bool
	errCode      *string
	errMessage   *string
}

// NewEventBuilder starts an empty assistant event.
func NewEventBuilder() *EventBuilder { return &EventBuilder{} }

// Partial sets the streaming fragment flag.
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// TurnComplete sets the explicit end-of-turn flag.
func (b *EventBuilder) TurnComplete(c bool) *EventBuilder { b.turnComplete = &c; return b }

// Error marks the event as a runtime error report.
func (b *EventBuilder) Error(msg string) *EventBuilder { b.errMessage = &msg; return b }

// ErrorCode attaches a machine readable code to an error event.
func (b *EventBuilder) ErrorCode(code string) *EventBuilder { b.errCode = &code; return b }

// AssistantText appends a text segment.
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.texts = append(b.texts, t)
	return b
}

// AddPart appends a non-text part.
func (b *EventBuilder) AddPart(p core.Part) *EventBuilder {
	b.extra = append(b.extra, p)
	return b
}

// Build returns the event. Events without parts carry no Content.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent("", "agent")
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	ev.ErrorCode = b.errCode
	ev.ErrorMessage = b.errMessage

	if len(b.texts)+len(b.extra) == 0 {
		return ev
	}
	parts := make([]core.Part, 0, len(b.texts)+len(b.extra))
	for _, t := range b.texts {
		parts = append(parts, core.TextPart{Text: t})
	}
	ev.Content = &core.Content{Role: core.RoleAssistant, Parts: append(parts, b.extra...)}
	return ev
}
