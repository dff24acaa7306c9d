// Package session houses concrete implementations of core.SessionStore, the
// runtime-side storage of conversation history. The gateway never touches it
// directly; it only holds the session ids handed out by the runner.
//
// Add durable backends in sub-packages without changing any calling code.
package session
