package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgate/core"
)

// RunCall records one Run invocation observed by a ScriptedRunner.
type RunCall struct {
	SessionID string
	Text      string
}

// ScriptedRunner is a core.Runner whose behavior is driven by plain fields so
// tests can describe the runtime they need in a single literal.
type ScriptedRunner struct {
	// CreateErr makes every CreateSession call fail.
	CreateErr error
	// CreateDelay blocks CreateSession (honoring ctx) before returning.
	CreateDelay time.Duration
	// CreateGate, when set, blocks CreateSession until it is closed.
	CreateGate chan struct{}
	// StartErr makes Run fail before any event is produced.
	StartErr error
	// Respond returns the events to emit and the terminal error for a turn.
	// When nil, a single final assistant event echoing the input is emitted.
	Respond func(sessionID, text string) ([]core.Event, error)
	// PanicOnRun makes Run panic with the given value.
	PanicOnRun any

	mu      sync.Mutex
	creates map[string]int
	runs    []RunCall
	seq     int
}

// CreateSession implements core.Runner.
func (r *ScriptedRunner) CreateSession(ctx context.Context, appName, userID string) (*core.Session, error) {
	r.mu.Lock()
	if r.creates == nil {
		r.creates = map[string]int{}
	}
	r.creates[userID]++
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	if r.CreateGate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.CreateGate:
		}
	}
	if r.CreateDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.CreateDelay):
		}
	}
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	sess := core.NewSession(fmt.Sprintf("sess-%d-%s", seq, userID))
	sess.SetMetadata(core.MetadataAppName, appName)
	sess.SetMetadata(core.MetadataUserID, userID)
	return sess, nil
}

// Run implements core.Runner.
func (r *ScriptedRunner) Run(ctx context.Context, sessionID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	if r.PanicOnRun != nil {
		panic(r.PanicOnRun)
	}

	text := userContent.Text()
	r.mu.Lock()
	r.runs = append(r.runs, RunCall{SessionID: sessionID, Text: text})
	r.mu.Unlock()

	if r.StartErr != nil {
		return "", nil, nil, r.StartErr
	}

	var (
		events []core.Event
		runErr error
	)
	if r.Respond != nil {
		events, runErr = r.Respond(sessionID, text)
	} else {
		events = []core.Event{NewEventBuilder().AssistantText("echo: " + text).Build()}
	}

	runID := core.NewID()
	eventsCh := make(chan core.Event)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(errorsCh)
		defer close(eventsCh)
		for _, ev := range events {
			ev.InvocationID = runID
			select {
			case <-ctx.Done():
				return
			case eventsCh <- ev:
			}
		}
		if runErr != nil {
			errorsCh <- runErr
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel implements core.Runner; scripted runs stop through ctx only.
func (r *ScriptedRunner) Cancel(runID string) error {
	return fmt.Errorf("run %s not found", runID)
}

// CreateCalls returns how many times CreateSession was called for userID.
func (r *ScriptedRunner) CreateCalls(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates[userID]
}

// TotalCreateCalls returns the number of CreateSession calls across all users.
func (r *ScriptedRunner) TotalCreateCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.creates {
		n += c
	}
	return n
}

// Runs returns a copy of the observed Run calls.
func (r *ScriptedRunner) Runs() []RunCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunCall(nil), r.runs...)
}

var _ core.Runner = (*ScriptedRunner)(nil)
