package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/session"
)

// ErrNoModelOutput is reported when the model finished without any response.
var ErrNoModelOutput = errors.New("model produced no output")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// AgentName is recorded as the author of assistant events.
	AgentName string
	// Instruction is the system prompt sent with every turn.
	Instruction string
	// MaxConcurrentInvocations limits concurrent model turns (0 = unlimited).
	MaxConcurrentInvocations int
	// EnableStreaming toggles partial events from the model.
	EnableStreaming bool
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxHistoryMessages bounds the history sent to the model (0 = all).
	MaxHistoryMessages int
	// SessionStore persists sessions (defaults to an in-memory store).
	SessionStore core.SessionStore
	// Logger receives runtime diagnostics.
	Logger logging.Logger
}

// Runner coordinates model turns for sessions: it creates sessions, streams
// events, and persists history. Public methods are safe for concurrent use.
type Runner struct {
	llm model.Model

	agentName          string
	instruction        string
	enableStreaming    bool
	eventBufferSize    int
	maxHistoryMessages int

	sessionStore core.SessionStore
	logger       logging.Logger
	sem          chan struct{}

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(llm model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AgentName:                "assistant",
		Instruction:              "Respond concisely and helpfully.",
		MaxConcurrentInvocations: 10,
		EnableStreaming:          true,
		EventBufferSize:          100,
		MaxHistoryMessages:       20,
		SessionStore:             session.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var sem chan struct{}
	if opts.MaxConcurrentInvocations > 0 {
		sem = make(chan struct{}, opts.MaxConcurrentInvocations)
	}

	return &Runner{
		llm:                llm,
		agentName:          opts.AgentName,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		eventBufferSize:    opts.EventBufferSize,
		maxHistoryMessages: opts.MaxHistoryMessages,
		sessionStore:       opts.SessionStore,
		logger:             opts.Logger,
		sem:                sem,
		activeRuns:         make(map[string]context.CancelFunc),
	}
}

// CreateSession allocates a new session tagged with appName and userID.
func (r *Runner) CreateSession(ctx context.Context, appName, userID string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := core.NewID()
	if _, err := r.sessionStore.Create(id); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	meta := map[string]string{core.MetadataAppName: appName, core.MetadataUserID: userID}
	if err := r.sessionStore.SetMetadata(id, meta); err != nil {
		return nil, fmt.Errorf("failed to tag session: %w", err)
	}

	r.logger.Debug("runner.session.created", "session_id", id, "app_name", appName, "user_id", userID)

	return r.sessionStore.Get(id)
}

// Run starts an asynchronous turn.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	if userContent.Role == "" {
		userContent.Role = core.RoleUser
	}
	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	req := model.Request{
		Instructions: r.instruction,
		Contents:     r.buildContents(sess, userContent),
		Stream:       r.enableStreaming,
	}

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
		}()

		if err := r.runTurn(ctx, sessionID, runID, req, eventsCh); err != nil {
			if ctx.Err() == nil {
				errorsCh <- fmt.Errorf("agent execution failed: %w", err)
			}
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of in-flight runs.
func (r *Runner) ActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

// buildContents turns the stored history (snapshot taken before the user
// event was appended) plus the new user turn into model contents.
func (r *Runner) buildContents(sess *core.Session, userContent core.Content) []core.Content {
	var history []core.Event
	switch {
	case r.maxHistoryMessages <= 0:
		history = sess.GetConversationHistory(0)
	case r.maxHistoryMessages > 1:
		history = sess.GetConversationHistory(r.maxHistoryMessages - 1)
	}
	contents := make([]core.Content, 0, len(history)+1)
	for _, ev := range history {
		contents = append(contents, *ev.Content)
	}
	return append(contents, userContent)
}

func (r *Runner) runTurn(
	ctx context.Context,
	sessionID, runID string,
	req model.Request,
	eventsCh chan<- core.Event,
) error {
	if r.sem != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.sem <- struct{}{}:
		}
		defer func() { <-r.sem }()
	}

	respCh, modelErrCh := r.llm.Generate(ctx, req)

	var (
		modelErr error
		final    bool
	)
	for respCh != nil || modelErrCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if final {
				continue
			}
			ev := r.toEvent(runID, resp)
			if !resp.Partial {
				final = true
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					return fmt.Errorf("failed to append event to session: %w", err)
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID, "partial", resp.Partial)
			}
		case err, ok := <-modelErrCh:
			if !ok {
				modelErrCh = nil
				continue
			}
			modelErr = err
		}
	}

	if modelErr != nil {
		return modelErr
	}
	if !final {
		return ErrNoModelOutput
	}
	return nil
}

func (r *Runner) toEvent(runID string, resp model.Response) core.Event {
	ev := core.NewEvent(runID, r.agentName)
	content := resp.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}
	ev.Content = &content
	if resp.Partial {
		partial := true
		ev.Partial = &partial
		return ev
	}
	done := true
	ev.TurnComplete = &done
	ev.Metadata = map[string]string{"model": r.llm.Info().Name}
	if resp.FinishReason != "" {
		ev.Metadata["finish_reason"] = resp.FinishReason
	}
	return ev
}

var _ core.Runner = (*Runner)(nil)
