package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/agentgate/core"
)

// ErrEmptyRequest is returned when a request carries no contents.
var ErrEmptyRequest = errors.New("model request has no contents")

// MockModel answers from a table of canned replies keyed by the last user
// text, falling back to "Mock response to: <text>". It backs the "mock"
// provider and the runtime tests.
type MockModel struct {
	name string

	mu       sync.Mutex
	canned   map[string]string
	failWith error
	seen     []Request
}

// NewMockModel constructs a MockModel reporting name in Info.
func NewMockModel(name string) *MockModel {
	return &MockModel{name: name, canned: map[string]string{}}
}

// AddResponse makes prompt answer with response.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	m.canned[prompt] = response
	m.mu.Unlock()
}

// SetError makes every subsequent Generate call fail with err (nil clears it).
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// Requests returns the requests observed so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.seen...)
}

// Generate streams the reply word by word when req.Stream is set, then
// sends the full reply as the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 16)
	errs := make(chan error, 1)

	prompt := LastUserText(req)
	m.mu.Lock()
	m.seen = append(m.seen, req)
	failure := m.failWith
	reply, found := m.canned[prompt]
	m.mu.Unlock()
	if !found {
		reply = "Mock response to: " + prompt
	}

	go func() {
		defer close(errs)
		defer close(out)

		switch {
		case failure != nil:
			errs <- failure
			return
		case len(req.Contents) == 0:
			errs <- ErrEmptyRequest
			return
		}

		emit := func(r Response) bool {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return false
			case out <- r:
				return true
			}
		}

		if req.Stream {
			for _, chunk := range strings.SplitAfter(reply, " ") {
				if !emit(Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, chunk)}) {
					return
				}
			}
		}
		emit(Response{Content: core.NewTextContent(core.RoleAssistant, reply), FinishReason: "stop"})
	}()
	return out, errs
}

// Info implements Model.
func (m *MockModel) Info() Info { return Info{Name: m.name, Provider: "mock"} }

var _ Model = (*MockModel)(nil)
