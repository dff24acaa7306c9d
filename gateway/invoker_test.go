package gateway_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/gateway"
	"github.com/hupe1980/agentgate/internal/testutil"
	"github.com/hupe1980/agentgate/logging"
)

func respondWith(events []core.Event, err error) func(string, string) ([]core.Event, error) {
	return func(string, string) ([]core.Event, error) { return events, err }
}

func TestInvoker_Invoke(t *testing.T) {
	tests := []struct {
		name         string
		events       []core.Event
		runErr       error
		wantText     string
		wantProduced bool
		wantErr      error
		wantFailed   bool
	}{
		{
			name:         "final text",
			events:       []core.Event{testutil.NewEventBuilder().AssistantText("hi there").Build()},
			wantText:     "hi there",
			wantProduced: true,
		},
		{
			name: "partials then final",
			events: []core.Event{
				testutil.NewEventBuilder().Partial(true).AssistantText("hi").Build(),
				testutil.NewEventBuilder().Partial(true).AssistantText(" there").Build(),
				testutil.NewEventBuilder().TurnComplete(true).AssistantText("hi there").Build(),
			},
			wantText:     "hi there",
			wantProduced: true,
		},
		{
			name: "first non-blank segment",
			events: []core.Event{
				testutil.NewEventBuilder().AssistantText("  ").AssistantText("second").Build(),
			},
			wantText:     "second",
			wantProduced: true,
		},
		{
			name: "first final wins",
			events: []core.Event{
				testutil.NewEventBuilder().AssistantText("one").Build(),
				testutil.NewEventBuilder().AssistantText("two").Build(),
			},
			wantText:     "one",
			wantProduced: true,
		},
		{
			name: "only partials",
			events: []core.Event{
				testutil.NewEventBuilder().Partial(true).AssistantText("hi").Build(),
			},
			wantErr: gateway.ErrNoFinalEvent,
		},
		{
			name:    "no events",
			wantErr: gateway.ErrNoFinalEvent,
		},
		{
			name:    "final without text",
			events:  []core.Event{testutil.NewEventBuilder().Build()},
			wantErr: gateway.ErrNoText,
		},
		{
			name: "final with data only",
			events: []core.Event{
				testutil.NewEventBuilder().AddPart(core.DataPart{Data: map[string]any{"k": "v"}}).Build(),
			},
			wantErr: gateway.ErrNoText,
		},
		{
			name:       "error event with code",
			events:     []core.Event{testutil.NewEventBuilder().ErrorCode("RATE_LIMIT").Error("slow down").Build()},
			wantFailed: true,
		},
		{
			name:       "error event",
			events:     []core.Event{testutil.NewEventBuilder().Error("model unavailable").Build()},
			wantFailed: true,
		},
		{
			name:       "runtime error",
			runErr:     errors.New("agent execution failed: boom"),
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &testutil.ScriptedRunner{Respond: respondWith(tt.events, tt.runErr)}
			inv := gateway.NewInvoker(runner)

			reply := inv.Invoke(context.Background(), "sess-1", "hello")

			assert.Equal(t, tt.wantProduced, reply.Produced)
			assert.Equal(t, tt.wantText, reply.Text)
			assert.Equal(t, tt.wantFailed, reply.Failed())
			if tt.wantErr != nil {
				assert.ErrorIs(t, reply.Err, tt.wantErr)
			}
			if tt.wantProduced {
				assert.NoError(t, reply.Err)
			}
		})
	}
}

func TestInvoker_SubmitsUserText(t *testing.T) {
	runner := &testutil.ScriptedRunner{}
	inv := gateway.NewInvoker(runner)

	reply := inv.Invoke(context.Background(), "sess-9", "what time is it")
	require.True(t, reply.Produced)
	assert.Equal(t, "echo: what time is it", reply.Text)

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "sess-9", runs[0].SessionID)
	assert.Equal(t, "what time is it", runs[0].Text)
}

func TestInvoker_StartError(t *testing.T) {
	runner := &testutil.ScriptedRunner{StartErr: errors.New("session not found")}
	reply := gateway.NewInvoker(runner).Invoke(context.Background(), "missing", "hi")

	assert.False(t, reply.Produced)
	assert.True(t, reply.Failed())
	assert.Contains(t, reply.Err.Error(), "start agent run")
}

func TestInvoker_RecoversPanic(t *testing.T) {
	runner := &testutil.ScriptedRunner{PanicOnRun: "kaboom"}
	reply := gateway.NewInvoker(runner).Invoke(context.Background(), "sess-1", "hi")

	assert.False(t, reply.Produced)
	assert.ErrorIs(t, reply.Err, gateway.ErrAgentPanic)
	assert.True(t, reply.Failed())
}

func TestInvoker_EventLimit(t *testing.T) {
	events := make([]core.Event, 10)
	for i := range events {
		events[i] = testutil.NewEventBuilder().Partial(true).AssistantText("x").Build()
	}
	runner := &testutil.ScriptedRunner{Respond: respondWith(events, nil)}
	inv := gateway.NewInvoker(runner, func(o *gateway.InvokerOptions) { o.MaxEvents = 3 })

	reply := inv.Invoke(context.Background(), "sess-1", "hi")
	assert.ErrorIs(t, reply.Err, gateway.ErrEventLimit)
	assert.True(t, reply.Failed())
}

func TestInvoker_Timeout(t *testing.T) {
	hang := &hangingRunner{ScriptedRunner: &testutil.ScriptedRunner{}}
	inv := gateway.NewInvoker(hang, func(o *gateway.InvokerOptions) { o.Timeout = 20 * time.Millisecond })

	reply := inv.Invoke(context.Background(), "sess-1", "hi")
	assert.ErrorIs(t, reply.Err, context.DeadlineExceeded)
	assert.True(t, reply.Failed())
}

func TestInvoker_LogLevels(t *testing.T) {
	tests := []struct {
		name    string
		events  []core.Event
		runErr  error
		want    string
		notWant string
	}{
		{
			name:    "no text is a warning",
			events:  []core.Event{testutil.NewEventBuilder().Build()},
			want:    "level=WARN msg=\"Agent produced no reply\"",
			notWant: "level=ERROR",
		},
		{
			name:    "runtime error is an error",
			runErr:  errors.New("agent execution failed: boom"),
			want:    "level=ERROR msg=\"Agent invocation failed\"",
			notWant: "level=WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text", Output: &buf})
			runner := &testutil.ScriptedRunner{Respond: respondWith(tt.events, tt.runErr)}
			inv := gateway.NewInvoker(runner, func(o *gateway.InvokerOptions) { o.Logger = logger })

			inv.Invoke(context.Background(), "sess-1", "hello")

			assert.Contains(t, buf.String(), tt.want)
			assert.NotContains(t, buf.String(), tt.notWant)
		})
	}
}

// hangingRunner starts a run that never emits anything until ctx ends.
type hangingRunner struct {
	*testutil.ScriptedRunner
}

func (h *hangingRunner) Run(ctx context.Context, _ string, _ core.Content) (string, <-chan core.Event, <-chan error, error) {
	events := make(chan core.Event)
	errs := make(chan error, 1)
	go func() {
		<-ctx.Done()
		close(events)
		close(errs)
	}()
	return "run-hang", events, errs, nil
}
