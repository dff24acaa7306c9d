package gateway

import (
	"context"
	"errors"
	"time"
)

// UserID identifies a message sender (for WhatsApp, the phone number).
type UserID string

// SessionHandle is the runtime session id owned by the SessionStore.
type SessionHandle string

// MessageKind classifies inbound messages; only text is processed.
type MessageKind int

const (
	// KindOther covers media, reactions, system notices, ...
	KindOther MessageKind = iota
	// KindText is a plain text message.
	KindText
)

// String returns the string representation of the kind.
func (k MessageKind) String() string {
	if k == KindText {
		return "text"
	}
	return "other"
}

// InboundMessage is one message unnested from a webhook batch.
type InboundMessage struct {
	ID        string
	From      UserID
	Text      string
	Kind      MessageKind
	Timestamp time.Time
}

// AgentReply is the outcome of one agent invocation. When Produced is false,
// Err explains why; see Failed for the distinction between an agent that
// answered with nothing and one that broke.
type AgentReply struct {
	Text     string
	Produced bool
	Err      error
}

// Failed reports whether the invocation itself failed, as opposed to the
// agent running to completion without usable text.
func (r AgentReply) Failed() bool {
	if r.Produced || r.Err == nil {
		return false
	}
	return !errors.Is(r.Err, ErrNoFinalEvent) && !errors.Is(r.Err, ErrNoText)
}

// DeliveryResult is the outcome of one outbound send. It is a value, never an error.
type DeliveryResult struct {
	Success    bool
	Detail     string
	StatusCode int
	MessageID  string
}

// BatchStatus is the batch-level verdict returned to the webhook caller.
type BatchStatus string

const (
	StatusOK      BatchStatus = "ok"
	StatusIgnored BatchStatus = "ignored"
	StatusError   BatchStatus = "error"
)

// BatchResult summarizes one HandleBatch call. Accepted counts text messages
// that passed the trigger filter; Delivered counts agent replies and fallbacks
// sent; Failed counts accepted messages that got no reply (an apology after a
// session failure still counts as failed) plus recovered panics.
type BatchResult struct {
	Status    BatchStatus `json:"status"`
	Detail    string      `json:"message,omitempty"`
	Received  int         `json:"received"`
	Accepted  int         `json:"accepted"`
	Delivered int         `json:"delivered"`
	Failed    int         `json:"failed"`
}

// BatchDecoder unnests a raw webhook body into individual messages. It
// returns ErrUnrecognizedBatch for well-formed payloads addressed to another
// product, and any other error for bodies that cannot be parsed.
type BatchDecoder interface {
	Decode(raw []byte) ([]InboundMessage, error)
}

// Deliverer sends reply text to a recipient. Implementations never panic or
// return errors; failures are reported in the DeliveryResult.
type Deliverer interface {
	Send(ctx context.Context, recipient, text string) DeliveryResult
}

// Gate decides whether message text is addressed to the agent.
type Gate interface {
	ShouldProcess(text string) bool
}

// Resolver maps a user to its session handle.
type Resolver interface {
	Resolve(ctx context.Context, user UserID) (SessionHandle, error)
}

// AgentInvoker runs one agent turn for a session.
type AgentInvoker interface {
	Invoke(ctx context.Context, session SessionHandle, text string) AgentReply
}

var (
	// ErrUnrecognizedBatch marks a payload whose top-level object is not handled.
	ErrUnrecognizedBatch = errors.New("unrecognized webhook object")
	// ErrNoFinalEvent is reported when the event stream ends without a final event.
	ErrNoFinalEvent = errors.New("agent stream ended without a final event")
	// ErrNoText is reported when the final event carries no usable text.
	ErrNoText = errors.New("agent final event carried no text")
	// ErrEventLimit is reported when the runtime emits more events than allowed.
	ErrEventLimit = errors.New("agent exceeded event limit")
	// ErrAgentPanic wraps a panic recovered from the runtime.
	ErrAgentPanic = errors.New("agent runtime panicked")
)
