package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/session"
)

func drain(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()
	var out []core.Event
	timeout := time.After(2 * time.Second)
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
		}
	}
	return out, <-errs
}

func TestRunner_CreateSession(t *testing.T) {
	store := session.NewInMemoryStore()
	r := New(model.NewMockModel("mock"), func(o *Options) { o.SessionStore = store })

	sess, err := r.CreateSession(context.Background(), "whatsapp_bot", "+1555")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "whatsapp_bot", sess.GetMetadata(core.MetadataAppName))
	assert.Equal(t, "+1555", sess.GetMetadata(core.MetadataUserID))

	other, err := r.CreateSession(context.Background(), "whatsapp_bot", "+1555")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID, "runner creates a fresh session per call")
	assert.Equal(t, 2, store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.CreateSession(ctx, "whatsapp_bot", "+1555")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunStreamsPartialsThenFinal(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("hi", "hey there friend")
	store := session.NewInMemoryStore()
	r := New(llm, func(o *Options) {
		o.SessionStore = store
		o.AgentName = "whatsapp_bot"
	})

	sess, err := r.CreateSession(context.Background(), "app", "u1")
	require.NoError(t, err)

	runID, events, errs, err := r.Run(context.Background(), sess.ID, core.NewTextContent(core.RoleUser, "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	got, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, got, 4)
	for _, ev := range got[:3] {
		assert.True(t, ev.IsPartial())
		assert.False(t, ev.IsFinalResponse())
	}
	final := got[3]
	assert.True(t, final.IsFinalResponse())
	assert.Equal(t, "whatsapp_bot", final.Author)
	assert.Equal(t, runID, final.InvocationID)
	text, ok := final.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "hey there friend", text)
	assert.Equal(t, "stop", final.Metadata["finish_reason"])

	stored, err := store.Get(sess.ID)
	require.NoError(t, err)
	history := stored.GetConversationHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Content.Role)
	assert.Equal(t, core.RoleAssistant, history[1].Content.Role)
}

func TestRunner_HistoryIsSentOnNextTurn(t *testing.T) {
	llm := model.NewMockModel("mock")
	r := New(llm, func(o *Options) {
		o.EnableStreaming = false
		o.Instruction = "be brief"
		o.MaxHistoryMessages = 3
	})

	sess, err := r.CreateSession(context.Background(), "app", "u1")
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, events, errs, err := r.Run(context.Background(), sess.ID, core.NewTextContent(core.RoleUser, text))
		require.NoError(t, err)
		_, runErr := drain(t, events, errs)
		require.NoError(t, runErr)
	}

	reqs := llm.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[0].Contents, 1)
	assert.Len(t, reqs[1].Contents, 3)
	assert.Len(t, reqs[2].Contents, 3, "history window bounds the request")
	assert.Equal(t, "three", model.LastUserText(reqs[2]))
	assert.Equal(t, "be brief", reqs[2].Instructions)
	assert.False(t, reqs[2].Stream)
}

func TestRunner_ModelErrorIsTerminal(t *testing.T) {
	llm := model.NewMockModel("mock")
	boom := errors.New("quota exceeded")
	llm.SetError(boom)
	r := New(llm)

	sess, err := r.CreateSession(context.Background(), "app", "u1")
	require.NoError(t, err)

	_, events, errs, err := r.Run(context.Background(), sess.ID, core.NewTextContent(core.RoleUser, "hi"))
	require.NoError(t, err)

	got, runErr := drain(t, events, errs)
	assert.Empty(t, got)
	assert.ErrorIs(t, runErr, boom)
	assert.Eventually(t, func() bool { return r.ActiveRuns() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunner_UnknownSessionAndCancel(t *testing.T) {
	r := New(model.NewMockModel("mock"))

	_, _, _, err := r.Run(context.Background(), "missing", core.NewTextContent(core.RoleUser, "hi"))
	assert.ErrorIs(t, err, session.ErrNotFound)

	assert.Error(t, r.Cancel("missing"))
}
