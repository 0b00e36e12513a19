package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the project-wide structured logger. Every line carries the
// service name, a machine-readable action, and the request correlation id
// taken from the context when one is present.
type Logger struct {
	service string
	zl      *zap.Logger
}

// New creates a JSON logger for the given service writing to stdout.
func New(service string) *Logger {
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		zapcore.DebugLevel,
	)

	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		hostname = "unknown-hostname"
	}

	zl := zap.New(core).With(
		zap.String("service", service),
		zap.String("hostname", hostname),
	)
	return &Logger{service: service, zl: zl}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details map[string]any) {
	l.zl.Debug(msg, l.fields(ctx, action, details)...)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details map[string]any) {
	l.zl.Info(msg, l.fields(ctx, action, details)...)
}

// Error writes an ERROR line with the error attached.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details map[string]any) {
	fields := l.fields(ctx, action, details)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.zl.Error(msg, fields...)
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

func (l *Logger) fields(ctx context.Context, action string, details map[string]any) []zap.Field {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "unspecified"
	}

	fields := []zap.Field{zap.String("action", action)}
	if reqID := requestID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if len(details) > 0 {
		fields = append(fields, zap.Any("details", details))
	}
	return fields
}

// ------------ Context helpers -------------

type ctxKey string

const ctxKeyRequestID ctxKey = "courier_request_id"

// WithRequestID returns a new context carrying a request correlation id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// requestID extracts the correlation id from ctx (if any).
func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(ctxKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
