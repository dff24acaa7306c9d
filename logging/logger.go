package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel selects the minimum severity written by a GatewayLogger.
type LogLevel = slog.Level

// Supported levels.
const (
	LogLevelDebug = slog.LevelDebug
	LogLevelInfo  = slog.LevelInfo
	LogLevelWarn  = slog.LevelWarn
	LogLevelError = slog.LevelError
)

// ParseLevel maps a case-insensitive level name to a LogLevel. Blank means info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is the logging surface every agentgate component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" (default) or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// GatewayLogger is a slog-backed Logger that can be scoped per component.
type GatewayLogger struct {
	logger *slog.Logger
}

// NewLogger builds a GatewayLogger. A nil cfg writes JSON at info level to stdout.
func NewLogger(cfg *LoggerConfig) *GatewayLogger {
	if cfg == nil {
		cfg = &LoggerConfig{Level: LogLevelInfo}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	}

	l := &GatewayLogger{logger: slog.New(h)}
	if cfg.Component != "" {
		l = l.WithComponent(cfg.Component)
	}
	return l
}

// Slog returns the underlying *slog.Logger, for libraries that take one directly.
func (l *GatewayLogger) Slog() *slog.Logger { return l.logger }

// WithComponent returns a child logger tagged with component=c.
func (l *GatewayLogger) WithComponent(c string) *GatewayLogger {
	return l.With("component", c)
}

// With returns a child logger carrying args on every record.
func (l *GatewayLogger) With(args ...any) *GatewayLogger {
	return &GatewayLogger{logger: l.logger.With(args...)}
}

func (l *GatewayLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *GatewayLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *GatewayLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *GatewayLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// LogInvocation records agent invocation latency and whether text was produced.
// failed separates real invocation errors from runs that ended without a reply.
func LogInvocation(l Logger, sessionID string, dur time.Duration, produced, failed bool, err error) {
	args := []any{"session_id", sessionID, "duration", dur, "produced", produced}
	switch {
	case err == nil:
		l.Info("Agent invocation completed", args...)
	case failed:
		l.Error("Agent invocation failed", append(args, "error", err.Error())...)
	default:
		l.Warn("Agent produced no reply", append(args, "reason", err.Error())...)
	}
}

// LogDelivery records the outcome of one outbound send.
func LogDelivery(l Logger, recipient string, dur time.Duration, success bool, detail string) {
	args := []any{"recipient", recipient, "duration", dur, "success", success}
	if detail != "" {
		args = append(args, "detail", detail)
	}
	if !success {
		l.Error("Reply delivery failed", args...)
		return
	}
	l.Info("Reply delivered", args...)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

var (
	_ Logger = (*GatewayLogger)(nil)
	_ Logger = NoOpLogger{}
)
