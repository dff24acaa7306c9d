// Package gateway routes inbound chat messages to per-user agent sessions and
// relays the agent's replies back to the sender.
//
// The pieces, leaves first:
//
//   - SessionStore maps a sender to exactly one runtime session, created lazily
//   - Invoker runs one agent turn and extracts a single reply (never fails)
//   - Dispatcher decodes a webhook batch, gates every message through a
//     trigger and drives SessionStore -> Invoker -> Deliverer per message
//
// Provider specifics (webhook JSON shape, outbound send API) sit behind the
// BatchDecoder and Deliverer interfaces; the agent runtime behind core.Runner.
// A failure while processing one message never affects another message.
package gateway
