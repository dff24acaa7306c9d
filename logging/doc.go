// Package logging provides the Logger interface used across agentgate and a
// slog-backed implementation.
//
// Components accept a Logger through their options and default to
// NoOpLogger. The binary builds one GatewayLogger and hands each component a
// child scoped with WithComponent:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	dispatcher := gateway.NewDispatcher(decoder, store, invoker, client, func(o *gateway.DispatcherOptions) {
//		o.Logger = logger.WithComponent("dispatcher")
//	})
//
// Arguments after msg are slog style key/value pairs.
package logging
