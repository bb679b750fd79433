package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger   = New(nil)
	defaultLoggerMu sync.RWMutex
)

// GetDefault returns the process-wide default logger.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the logger returned when a context carries none.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext returns a copy of ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithField returns a context whose logger carries one more field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// WithFields returns a context whose logger carries the given fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRequestID sets the request ID field in context.
func SetRequestID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldRequestID, id)
}

// SetRunID sets the pipeline run ID field in context.
func SetRunID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldRunID, id)
}

// SetPipeline sets the pipeline name field in context.
func SetPipeline(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldPipeline, name)
}

// SetComponent sets the component name field in context.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldComponent, name)
}

// GetFieldString extracts a string field from the context's logger.
func GetFieldString(ctx context.Context, key string) string {
	val, ok := FromContext(ctx).Data[key]
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return GetFieldString(ctx, FieldRequestID)
}

// GetRunID extracts the run ID from context.
func GetRunID(ctx context.Context) string {
	return GetFieldString(ctx, FieldRunID)
}
