package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
)

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// MaxEvents bounds how many events one turn may emit before it is abandoned.
	MaxEvents int
	// Timeout bounds one turn (0 = no deadline beyond the caller's ctx).
	Timeout time.Duration
	Logger  logging.Logger
}

// Invoker drives one agent turn and extracts a single reply. It is the only
// place that knows the runtime's event protocol.
type Invoker struct {
	runner    core.Runner
	maxEvents int
	timeout   time.Duration
	logger    logging.Logger
}

// NewInvoker creates an Invoker over runner.
func NewInvoker(runner core.Runner, optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{
		MaxEvents: 256,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{
		runner:    runner,
		maxEvents: opts.MaxEvents,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// Invoke submits text as a user turn to session and waits for the first
// final event. It never panics and never returns an error; every failure is
// folded into AgentReply.Err with Produced=false.
func (i *Invoker) Invoke(ctx context.Context, session SessionHandle, text string) (reply AgentReply) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reply = AgentReply{Err: fmt.Errorf("%w: %v", ErrAgentPanic, r)}
		}
		logging.LogInvocation(i.logger, string(session), time.Since(start), reply.Produced, reply.Failed(), reply.Err)
	}()

	var cancel context.CancelFunc
	if i.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	// stops the runtime from emitting once we stop reading
	defer cancel()

	_, events, errs, err := i.runner.Run(ctx, string(session), core.NewTextContent(core.RoleUser, text))
	if err != nil {
		return AgentReply{Err: fmt.Errorf("start agent run: %w", err)}
	}

	return i.consume(ctx, events, errs)
}

func (i *Invoker) consume(ctx context.Context, events <-chan core.Event, errs <-chan error) AgentReply {
	seen := 0
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return AgentReply{Err: ctx.Err()}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			seen++
			if i.maxEvents > 0 && seen > i.maxEvents {
				return AgentReply{Err: fmt.Errorf("%w: %d", ErrEventLimit, i.maxEvents)}
			}
			if !ev.IsFinalResponse() {
				continue
			}
			if ev.HasError() {
				return AgentReply{Err: fmt.Errorf("agent reported error: %s", eventError(ev))}
			}
			if txt, ok := ev.FirstText(); ok {
				return AgentReply{Text: txt, Produced: true}
			}
			return AgentReply{Err: ErrNoText}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return AgentReply{Err: err}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return AgentReply{Err: err}
	}
	return AgentReply{Err: ErrNoFinalEvent}
}

func eventError(ev core.Event) string {
	switch {
	case ev.ErrorMessage != nil && ev.ErrorCode != nil:
		return *ev.ErrorCode + ": " + *ev.ErrorMessage
	case ev.ErrorMessage != nil:
		return *ev.ErrorMessage
	default:
		return *ev.ErrorCode
	}
}
