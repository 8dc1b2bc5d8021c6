package intent

import (
	"context"
	"testing"
)

func TestGateClassifyIntentFallback(t *testing.T) {
	g := New(nil)

	cases := []struct {
		query string
		want  Category
	}{
		{"Who are you?", CategoryIdentity},
		{"I'm so worried about my visa expiring", CategoryEmotional},
		{"What is the step by step process for a KITAS?", CategoryProcedural},
		{"What is a KITAS?", CategoryBusinessSimple},
		{"What's the difference between KITAS and also a KITAP, and then what about NPWP?", CategoryBusinessComplex},
		{"What's your favorite movie?", CategoryOffTopic},
	}
	for _, c := range cases {
		got := g.ClassifyIntent(context.Background(), c.query)
		if got.Category != c.want {
			t.Errorf("ClassifyIntent(%q) = %q, want %q", c.query, got.Category, c.want)
		}
	}
}

type stubClassifier struct {
	result *Classification
	err    error
}

func (s stubClassifier) ClassifyIntent(ctx context.Context, query string) (*Classification, error) {
	return s.result, s.err
}

func TestGatePrefersClassifierOnSuccess(t *testing.T) {
	g := New(stubClassifier{result: &Classification{Category: CategoryBusinessComplex, SuggestedTier: "PRO"}})
	got := g.ClassifyIntent(context.Background(), "anything")
	if got.Category != CategoryBusinessComplex {
		t.Errorf("ClassifyIntent() = %q, want %q", got.Category, CategoryBusinessComplex)
	}
}

func TestGateFallsBackOnClassifierError(t *testing.T) {
	g := New(stubClassifier{err: context.DeadlineExceeded})
	got := g.ClassifyIntent(context.Background(), "What is a KITAS?")
	if got.Category != CategoryBusinessSimple {
		t.Errorf("ClassifyIntent() fallback = %q, want %q", got.Category, CategoryBusinessSimple)
	}
}

func TestIsOutOfDomain(t *testing.T) {
	cases := []struct {
		query    string
		wantOOD  bool
		wantKind OODCategory
	}{
		{"What's my credit card number on file?", true, OODPersonalData},
		{"What's the weather like today?", true, OODRealtimeInfo},
		{"Can you give me a movie recommendation?", true, OODOffTopic},
		{"What is a KITAS?", false, ""},
	}
	for _, c := range cases {
		ood, kind := IsOutOfDomain(c.query)
		if ood != c.wantOOD || kind != c.wantKind {
			t.Errorf("IsOutOfDomain(%q) = (%v, %q), want (%v, %q)", c.query, ood, kind, c.wantOOD, c.wantKind)
		}
	}
}
