// Package log provides the process-wide structured logger.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.MillisDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger is the logging surface used across the module.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	// With returns a child logger carrying the given key/value pairs.
	With(args ...any) *zap.SugaredLogger
}

// Default is the logger behind the package-level helpers.
var Default Logger = newLogger(os.Stdout)

func newLogger(w io.Writer) *zap.SugaredLogger {
	return zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(w),
			zapLevel,
		),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).Sugar()
}

// SetOutput redirects Default to w. Stdio MCP mode sends logs to stderr so
// stdout stays reserved for the protocol.
func SetOutput(w io.Writer) {
	Default = newLogger(w)
}

// SetLevel sets the log level. Unknown levels fall back to info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// Discard silences all output. Used by tests and by stdio mode without debug.
func Discard() {
	Default = zap.NewNop().Sugar()
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	Default.Debugf(format, args...)
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	Default.Infof(format, args...)
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	Default.Warnf(format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	Default.Errorf(format, args...)
}

// Fatalf logs at FATAL level and exits.
func Fatalf(format string, args ...any) {
	Default.Fatalf(format, args...)
}

// With returns a child of Default carrying key/value pairs, e.g. a request id.
func With(args ...any) *zap.SugaredLogger {
	// Child loggers are called directly, not through the helpers above.
	return Default.With(args...).WithOptions(zap.AddCallerSkip(-1))
}
