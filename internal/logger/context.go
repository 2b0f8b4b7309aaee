package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
)

// getDefaultLogger lazily initializes the process-wide logger.
func getDefaultLogger() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(nil)
		}
	})
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger. Call once at startup.
func SetDefaultLogger(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = l
}

// IntoContext returns a context carrying the given logger.
// Parameters:
//   - ctx: parent context.
//   - l: logger to attach.
// Returns:
//   - context.Context: derived context carrying the logger.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
// Parameters:
//   - ctx: context possibly carrying a logger.
// Returns:
//   - *Logger: attached or default logger, never nil.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
			return l
		}
	}
	return getDefaultLogger()
}

// WithFields attaches fields to the logger in ctx and returns the new context.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return IntoContext(ctx, FromContext(ctx).WithFields(fields))
}

// SetRequestID attaches a request identifier to the context logger.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, Fields{FieldRequestID: requestID})
}

// SetJobID attaches a teach job identifier to the context logger.
func SetJobID(ctx context.Context, jobID string) context.Context {
	return WithFields(ctx, Fields{FieldJobID: jobID})
}

// SetComponent attaches a component name to the context logger.
func SetComponent(ctx context.Context, component string) context.Context {
	return WithFields(ctx, Fields{FieldComponent: component})
}

// SetModelClass attaches the model/class pair to the context logger.
func SetModelClass(ctx context.Context, model, class string) context.Context {
	return WithFields(ctx, Fields{FieldModel: model, FieldClass: class})
}
