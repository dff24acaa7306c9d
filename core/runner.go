package core

import "context"

// Runner is the agent runtime contract the gateway drives. It provides:
//   - Session creation scoped to an application and a user
//   - Asynchronous execution via Run (streaming events + terminal error channel)
//   - Cooperative cancellation through Cancel
//
// Semantics & Guarantees:
//   - Event Ordering: events of one run are delivered in production order.
//   - Channel Lifecycle: the events channel is closed after the run completes
//     (success, error, or cancellation). The error channel carries at most one
//     terminal error then closes.
//   - Cancellation: context cancellation or Cancel(runID) stops further event
//     emission. Callers that stop reading early must cancel ctx.
//   - Partial Events: implementations MAY emit partial events before the final
//     one; consumers rely on IsPartial / IsFinalResponse.
type Runner interface {
	// CreateSession allocates a new conversational context for userID within
	// appName and returns it.
	CreateSession(ctx context.Context, appName, userID string) (*Session, error)

	// Run initiates an asynchronous turn bound to sessionID using userContent
	// as input. It returns:
	//   runID    - stable identifier for cancellation / tracking
	//   eventsCh - ordered stream of events (closed on completion)
	//   errorsCh - terminal error channel (size 1, closed after send/none)
	// The immediate error return covers startup failures (e.g. unknown session).
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel requests cooperative termination of an in-flight run. Cancelling
	// an unknown or finished run returns an error.
	Cancel(runID string) error
}
