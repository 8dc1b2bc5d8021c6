// Package logging threads a small structured-logging interface through the
// core, the way the teacher's middleware/logger package threads a
// minimal Logger through call/stream middleware rather than importing a
// concrete logging library everywhere.
package logging

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the interface every component depends on. It is intentionally
// narrow so the concrete backend can be swapped without touching callers.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Debug(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type zlogger struct {
	z zerolog.Logger
}

// New builds a zerolog-backed Logger writing leveled JSON to stderr.
func New(level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	return &zlogger{z: z}
}

func apply(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

func (l *zlogger) Info(msg string, fields ...Field)  { apply(l.z.Info(), fields).Msg(msg) }
func (l *zlogger) Warn(msg string, fields ...Field)  { apply(l.z.Warn(), fields).Msg(msg) }
func (l *zlogger) Debug(msg string, fields ...Field) { apply(l.z.Debug(), fields).Msg(msg) }

func (l *zlogger) Error(msg string, err error, fields ...Field) {
	apply(l.z.Error().Err(err), fields).Msg(msg)
}

func (l *zlogger) With(fields ...Field) Logger {
	ctx := l.z.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zlogger{z: ctx.Logger()}
}

type ctxKey struct{}

// CorrelationID extracts the request-scoped correlation id attached to ctx
// by the HTTP edge, defaulting to "unknown" so logging never panics.
func CorrelationID(ctx context.Context) string {
	v, ok := ctx.Value(ctxKey{}).(string)
	if !ok || v == "" {
		return "unknown"
	}
	return v
}

// WithCorrelationID returns a context carrying the given correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Nop is a Logger that discards everything; useful in tests.
type Nop struct{}

func (Nop) Info(string, ...Field)         {}
func (Nop) Warn(string, ...Field)         {}
func (Nop) Error(string, error, ...Field) {}
func (Nop) Debug(string, ...Field)        {}
func (n Nop) With(...Field) Logger        { return n }
