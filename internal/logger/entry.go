package logger

import "context"

// Entry accumulates structured fields before emitting a single log line.
// Use for request/operation summary lines where fields are collected across
// several steps.
type Entry struct {
	fields Fields
}

// With starts a new Entry with the given fields.
// Parameters:
//   - fields: initial structured fields.
// Returns:
//   - *Entry: accumulator, emit with Debug/Info/Warn/Error.
func With(fields Fields) *Entry {
	copied := make(Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Entry{fields: copied}
}

// Field adds a single field to the entry.
func (e *Entry) Field(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// Fields merges additional fields into the entry.
func (e *Entry) Fields(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// Err adds an error field to the entry. A nil error is ignored.
func (e *Entry) Err(err error) *Entry {
	if err != nil {
		e.fields["error"] = err.Error()
	}
	return e
}

// Debug emits the accumulated entry at Debug level.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Debugf(format, args...)
}

// Info emits the accumulated entry at Info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn emits the accumulated entry at Warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}

// Error emits the accumulated entry at Error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Errorf(format, args...)
}
