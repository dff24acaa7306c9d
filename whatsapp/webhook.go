package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentgate/gateway"
)

// ObjectBusinessAccount is the only top-level webhook object handled.
const ObjectBusinessAccount = "whatsapp_business_account"

// Payload is the webhook body posted by the Cloud API.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one notification; Field is "messages" for inbound traffic.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages (and delivery statuses) of a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is one inbound message record.
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

// Text is the body of a text message.
type Text struct {
	Body string `json:"body"`
}

// Status is a delivery receipt for a message we sent; it is not processed.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// Decoder implements gateway.BatchDecoder for Cloud API webhook bodies.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses raw and flattens entry -> changes -> messages. Records
// without a sender are dropped; non-text records are kept as KindOther.
func (Decoder) Decode(raw []byte) ([]gateway.InboundMessage, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if p.Object != ObjectBusinessAccount {
		return nil, fmt.Errorf("%w: %q", gateway.ErrUnrecognizedBatch, p.Object)
	}

	var msgs []gateway.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.From == "" {
					continue
				}
				msgs = append(msgs, toInbound(m))
			}
		}
	}
	return msgs, nil
}

func toInbound(m Message) gateway.InboundMessage {
	in := gateway.InboundMessage{
		ID:   m.ID,
		From: gateway.UserID(m.From),
		Kind: gateway.KindOther,
	}
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		in.Timestamp = time.Unix(sec, 0).UTC()
	}
	// older payloads omit type on text messages
	if (m.Type == "text" || m.Type == "") && m.Text != nil && strings.TrimSpace(m.Text.Body) != "" {
		in.Kind = gateway.KindText
		in.Text = m.Text.Body
	}
	return in
}

var _ gateway.BatchDecoder = Decoder{}
