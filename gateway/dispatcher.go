package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentgate/logging"
)

// Fallback texts sent when the agent cannot answer.
const (
	DefaultErrorText      = "Sorry, I encountered an error."
	DefaultEmptyReplyText = "I received your message but couldn't generate a response."
)

// Outcome is the terminal state of one message.
type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"         // not a text message
	OutcomeRejected       Outcome = "rejected"        // trigger filter said no
	OutcomeSessionFailed  Outcome = "session_failed"  // no session, nothing delivered
	OutcomeApologized     Outcome = "apologized"      // no session, error text sent
	OutcomeDelivered      Outcome = "delivered"       // a reply (or fallback) was sent
	OutcomeDeliveryFailed Outcome = "delivery_failed" // the send call reported failure
	OutcomePanicked       Outcome = "panicked"        // recovered while processing
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Filter gates messages; nil accepts every text message.
	Filter Gate
	// MaxConcurrency bounds messages processed at once per batch (0 = unlimited).
	MaxConcurrency int
	// ErrorText is sent when the invocation failed. Blank means DefaultErrorText.
	ErrorText string
	// EmptyReplyText is sent when the agent produced no text. Blank means
	// DefaultEmptyReplyText.
	EmptyReplyText string
	// ApologizeOnSessionFailure sends ErrorText when no session could be created.
	ApologizeOnSessionFailure bool
	Logger                    logging.Logger
}

// Dispatcher is the top-level orchestrator for one webhook delivery.
type Dispatcher struct {
	decoder   BatchDecoder
	resolver  Resolver
	invoker   AgentInvoker
	deliverer Deliverer

	filter                    Gate
	maxConcurrency            int
	errorText                 string
	emptyReplyText            string
	apologizeOnSessionFailure bool
	logger                    logging.Logger
}

// NewDispatcher wires the pipeline together.
func NewDispatcher(
	decoder BatchDecoder,
	resolver Resolver,
	invoker AgentInvoker,
	deliverer Deliverer,
	optFns ...func(o *DispatcherOptions),
) *Dispatcher {
	opts := DispatcherOptions{
		MaxConcurrency:            8,
		ErrorText:                 DefaultErrorText,
		EmptyReplyText:            DefaultEmptyReplyText,
		ApologizeOnSessionFailure: true,
		Logger:                    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if strings.TrimSpace(opts.ErrorText) == "" {
		opts.ErrorText = DefaultErrorText
	}
	if strings.TrimSpace(opts.EmptyReplyText) == "" {
		opts.EmptyReplyText = DefaultEmptyReplyText
	}
	return &Dispatcher{
		decoder:                   decoder,
		resolver:                  resolver,
		invoker:                   invoker,
		deliverer:                 deliverer,
		filter:                    opts.Filter,
		maxConcurrency:            opts.MaxConcurrency,
		errorText:                 opts.ErrorText,
		emptyReplyText:            opts.EmptyReplyText,
		apologizeOnSessionFailure: opts.ApologizeOnSessionFailure,
		logger:                    opts.Logger,
	}
}

// HandleBatch decodes raw and processes every message it contains. Only a
// decode failure is visible in the result status; per-message failures are
// logged and counted.
func (d *Dispatcher) HandleBatch(ctx context.Context, raw []byte) BatchResult {
	msgs, err := d.decoder.Decode(raw)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedBatch) {
			d.logger.Info("webhook batch ignored", "reason", err.Error())
			return BatchResult{Status: StatusIgnored}
		}
		d.logger.Error("webhook batch rejected", "error", err.Error())
		return BatchResult{Status: StatusError, Detail: err.Error()}
	}
	d.logger.Info("webhook batch received", "messages", len(msgs))
	return d.HandleMessages(ctx, msgs)
}

// HandleMessages processes already-decoded messages independently of each other.
func (d *Dispatcher) HandleMessages(ctx context.Context, msgs []InboundMessage) BatchResult {
	var accepted, delivered, failed atomic.Int64

	g := new(errgroup.Group)
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}
	for _, msg := range msgs {
		g.Go(func() error {
			switch d.process(ctx, msg) {
			case OutcomeDelivered:
				accepted.Add(1)
				delivered.Add(1)
			case OutcomeDeliveryFailed:
				accepted.Add(1)
				failed.Add(1)
			case OutcomeSessionFailed, OutcomeApologized:
				accepted.Add(1)
				failed.Add(1)
			case OutcomePanicked:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return BatchResult{
		Status:    StatusOK,
		Received:  len(msgs),
		Accepted:  int(accepted.Load()),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
}

// process runs one message through the pipeline and logs its terminal outcome.
func (d *Dispatcher) process(ctx context.Context, msg InboundMessage) (outcome Outcome) {
	log := []any{"message_id", msg.ID, "from", string(msg.From)}
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanicked
			d.logger.Error("message processing panicked", append(log, "panic", fmt.Sprint(r))...)
		}
		d.logger.Info("message processed", append(log, "outcome", string(outcome))...)
	}()

	if msg.Kind != KindText {
		return OutcomeSkipped
	}
	if d.filter != nil && !d.filter.ShouldProcess(msg.Text) {
		d.logger.Debug("message rejected by trigger filter", log...)
		return OutcomeRejected
	}

	session, err := d.resolver.Resolve(ctx, msg.From)
	if err != nil {
		d.logger.Error("session resolution failed", append(log, "error", err.Error())...)
		if !d.apologizeOnSessionFailure {
			return OutcomeSessionFailed
		}
		if d.deliver(ctx, msg, d.errorText) {
			return OutcomeApologized
		}
		return OutcomeSessionFailed
	}

	reply := d.invoker.Invoke(ctx, session, msg.Text)
	text := reply.Text
	switch {
	case reply.Produced:
	case reply.Failed():
		d.logger.Warn("agent invocation failed, sending error text", append(log, "error", reply.Err.Error())...)
		text = d.errorText
	default:
		d.logger.Warn("agent produced no text, sending fallback", append(log, "reason", fmt.Sprint(reply.Err))...)
		text = d.emptyReplyText
	}

	if d.deliver(ctx, msg, text) {
		return OutcomeDelivered
	}
	return OutcomeDeliveryFailed
}

func (d *Dispatcher) deliver(ctx context.Context, msg InboundMessage, text string) bool {
	res := d.deliverer.Send(ctx, string(msg.From), text)
	if !res.Success {
		d.logger.Error("reply delivery failed", "message_id", msg.ID, "from", string(msg.From), "detail", res.Detail, "status_code", res.StatusCode)
	}
	return res.Success
}
