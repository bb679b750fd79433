package logger

import "context"

// Entry carries metric fields (duration_ms, count, ...) for a single log line.
//
//	logger.With(logger.Fields{logger.FieldDurationMs: 1234}).Info(ctx, "run finished")
type Entry struct {
	fields Fields
}

// With creates an Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// With merges more fields into a copy of the Entry.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithDuration adds a duration_ms field.
func (e *Entry) WithDuration(ms int64) *Entry {
	return e.With(Fields{FieldDurationMs: ms})
}

// WithCount adds a count field.
func (e *Entry) WithCount(count int) *Entry {
	return e.With(Fields{FieldCount: count})
}

// Info logs at Info level using the context logger.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn logs at Warn level using the context logger.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}

// Error logs at Error level using the context logger.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Errorf(format, args...)
}
