package logging

import (
	"context"
	"errors"
	"testing"
)

func TestNopSatisfiesLogger(t *testing.T) {
	var l Logger = Nop{}
	l.Info("msg", F("k", "v"))
	l.Warn("msg")
	l.Debug("msg")
	l.Error("msg", errors.New("boom"))
	if _, ok := l.With(F("a", 1)).(Logger); !ok {
		t.Error("Nop.With() does not return a Logger")
	}
}

func TestNewParsesLevel(t *testing.T) {
	if l := New("info"); l == nil {
		t.Error("New(info) = nil")
	}
	if l := New("not-a-level"); l == nil {
		t.Error("New(invalid level) = nil, want a logger defaulting to info")
	}
}

func TestCorrelationIDDefaultsToUnknown(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "unknown" {
		t.Errorf("CorrelationID(no value) = %q, want unknown", got)
	}
}

func TestWithCorrelationIDRoundTrips(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-123")
	if got := CorrelationID(ctx); got != "req-123" {
		t.Errorf("CorrelationID() = %q, want req-123", got)
	}
}
