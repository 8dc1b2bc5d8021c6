package domain

import "testing"

func TestCollectiveFactInvariant(t *testing.T) {
	cases := []struct {
		name string
		fact CollectiveFact
		want bool
	}{
		{"promoted with enough sources", CollectiveFact{Promoted: true, SourceCount: 3, Confidence: 0.5}, true},
		{"not promoted below threshold", CollectiveFact{Promoted: false, SourceCount: 1, Confidence: 0.5}, true},
		{"promoted flag out of sync", CollectiveFact{Promoted: true, SourceCount: 1, Confidence: 0.5}, false},
		{"not promoted but meets threshold", CollectiveFact{Promoted: false, SourceCount: 3, Confidence: 0.5}, false},
		{"confidence below zero", CollectiveFact{Promoted: false, SourceCount: 0, Confidence: -0.1}, false},
		{"confidence above one", CollectiveFact{Promoted: false, SourceCount: 0, Confidence: 1.1}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.fact.Invariant(3); got != c.want {
				t.Errorf("Invariant() = %v, want %v", got, c.want)
			}
		})
	}
}
