// Package core provides the domain types and interfaces shared between the
// gateway and the agent runtime that backs it:
//
//   - Sessions (per-user conversational containers with event history)
//   - Events (immutable records emitted while the runtime answers a turn)
//   - Content / Part (role-tagged message payloads)
//   - Runner / SessionStore (the contracts the gateway drives)
//
// Concrete runtimes, stores and model providers live in sibling packages so
// the gateway only ever depends on the small interfaces declared here.
package core
