package observability

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/model"
)

// Context key for the logger.
type loggerKey struct{}

// NewLogger creates a zap.Logger configured for JSON output to stdout.
//
// Log level usage conventions:
//   - error: Template and serialization failures, unhandled panics, 5xx responses
//   - warn:  Degraded operation (session write failed, session store unreachable)
//   - info:  Request start/end, server lifecycle, stop requests
//   - debug: State reconciliation details, redacted form values
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or the provided
// fallback if none is found.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger returns a logger enriched with RequestContext fields.
// If no logger is in the context, the fallback is used.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	fields := []zap.Field{
		zap.String("correlation_id", rctx.CorrelationID),
	}
	if rctx.Transport != "" {
		fields = append(fields, zap.String("transport", rctx.Transport))
	}
	if rctx.Subject != "" {
		fields = append(fields, zap.String("subject", rctx.Subject))
	}
	if rctx.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rctx.TraceID))
	}

	return logger.With(fields...)
}

// defaultSensitiveFields is the default set of form field names that should
// be redacted in debug logging output.
var defaultSensitiveFields = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"api_key":       true,
	"authorization": true,
	"credit_card":   true,
	"pin":           true,
}

// RedactForm returns the first value of each form field with sensitive
// fields replaced by "[REDACTED]". Field names are matched case-insensitively
// after stripping the control prefix (txt, cb, dd, rb), so txt_password and
// txtPassword are both redacted. The state snapshots are summarized by
// length. This is intended for debug-level logging only.
func RedactForm(form url.Values, sensitiveFields []string) map[string]any {
	if form == nil {
		return nil
	}

	redactSet := make(map[string]bool, len(defaultSensitiveFields)+len(sensitiveFields))
	for k, v := range defaultSensitiveFields {
		redactSet[k] = v
	}
	for _, f := range sensitiveFields {
		redactSet[strings.ToLower(f)] = true
	}

	result := make(map[string]any, len(form))
	for k := range form {
		v := form.Get(k)
		switch {
		case redactSet[normalizeField(k)]:
			result[k] = "[REDACTED]"
		case strings.HasSuffix(k, "state_json"):
			result[k] = len(v)
		default:
			result[k] = v
		}
	}
	return result
}

func normalizeField(name string) string {
	n := strings.ToLower(name)
	for _, p := range []string{"txt", "cb", "dd", "rb"} {
		if strings.HasPrefix(n, p) {
			n = strings.TrimPrefix(n[len(p):], "_")
			break
		}
	}
	return n
}
