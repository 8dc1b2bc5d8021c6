package errs

import (
	"fmt"
	"testing"
)

func TestClassifyWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("gateway: upstream call failed: %w", ErrUpstreamTimeout)
	if got := Classify(wrapped); got != KindTransientUpstream {
		t.Errorf("Classify(wrapped timeout) = %v, want %v", got, KindTransientUpstream)
	}
}

func TestClassifyUnknownError(t *testing.T) {
	if got := Classify(fmt.Errorf("some unrelated failure")); got != KindUnknown {
		t.Errorf("Classify(unrelated) = %v, want %v", got, KindUnknown)
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != KindUnknown {
		t.Errorf("Classify(nil) = %v, want %v", got, KindUnknown)
	}
}

func TestTransient(t *testing.T) {
	if !Transient(fmt.Errorf("%w", ErrRateLimited)) {
		t.Error("Transient(ErrRateLimited) = false, want true")
	}
	if Transient(fmt.Errorf("%w", ErrAllTiersExhausted)) {
		t.Error("Transient(ErrAllTiersExhausted) = true, want false")
	}
}

func TestKindString(t *testing.T) {
	if got := KindTransientUpstream.String(); got != "transient_upstream" {
		t.Errorf("KindTransientUpstream.String() = %q, want %q", got, "transient_upstream")
	}
	if got := Kind(999).String(); got != "unknown" {
		t.Errorf("Kind(999).String() = %q, want %q", got, "unknown")
	}
}
