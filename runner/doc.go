// Package runner implements the single-agent runtime behind the gateway.
//
// A Runner owns the conversation history of every session it creates and
// answers one user turn at a time per Run call:
//
//   - Session creation scoped to an application name and a user id
//   - History windowing + instruction injection into a model.Request
//   - Event streaming (partial fragments, then exactly one final event)
//   - History persistence of the user turn and the final assistant event
//   - Run lifecycle management, bounded concurrency and cancellation
//
// See runner.go for the operational implementation details.
package runner
