// Package intent implements the intent classifier and out-of-domain gate
// from spec §4.5 steps 1-2: a small closed tag set, a lightweight LLM call
// with a keyword-rule fallback, so OOD gating stays available even during an
// LLM outage.
package intent

import (
	"context"
	"strings"
)

// Category is the closed intent tag set from spec §4.5 step 1.
type Category string

const (
	CategoryIdentity        Category = "identity"
	CategoryBusinessSimple  Category = "business_simple"
	CategoryBusinessComplex Category = "business_complex"
	CategoryProcedural      Category = "procedural"
	CategoryOffTopic        Category = "off_topic"
	CategoryEmotional       Category = "emotional"
)

// OODCategory is the closed out-of-domain tag set from spec §4.5 step 2.
type OODCategory string

const (
	OODPersonalData OODCategory = "personal_data"
	OODRealtimeInfo OODCategory = "realtime_info"
	OODOffTopic     OODCategory = "off_topic"
)

// Classification is the classifier's output.
type Classification struct {
	Category      Category
	SuggestedTier string // LLM gateway tier name, e.g. "FLASH"
}

// Classifier calls an LLM (LITE tier in production) with a constrained
// JSON-schema response to classify intent.
type Classifier interface {
	ClassifyIntent(ctx context.Context, query string) (*Classification, error)
}

// Gate classifies a query into the closed tag set, falling back to a
// keyword-rule classifier if the LLM call fails, and separately answers the
// OOD gate. Both are available even if the LLM tier backing Classifier is
// down, since gating must never depend on the component it gates.
type Gate struct {
	classifier Classifier
}

// New builds a Gate. classifier may be nil to always use the keyword-rule
// fallback.
func New(classifier Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// ClassifyIntent returns the best-effort classification for query, falling
// back to keywordClassify on any LLM failure.
func (g *Gate) ClassifyIntent(ctx context.Context, query string) *Classification {
	if g.classifier != nil {
		if c, err := g.classifier.ClassifyIntent(ctx, query); err == nil && c != nil {
			return c
		}
	}
	return keywordClassify(query)
}

var identityKeywords = []string{"who are you", "chi sei", "siapa kamu", "your name", "nama kamu"}
var emotionalKeywords = []string{"sad", "worried", "scared", "stressed", "khawatir", "takut", "preoccupato"}
var procedureKeywords = []string{"step by step", "how do i apply", "process for", "langkah", "prosedur", "procedura"}
var businessKeywords = []string{"visa", "kitas", "kitap", "pt pma", "nib", "npwp", "tax", "pajak", "kbli", "company", "perusahaan"}
var complexityKeywords = []string{"and then", "also", "in addition", "compare", "difference between", "versus"}

func keywordClassify(query string) *Classification {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, identityKeywords):
		return &Classification{Category: CategoryIdentity, SuggestedTier: "LITE"}
	case containsAny(lower, emotionalKeywords):
		return &Classification{Category: CategoryEmotional, SuggestedTier: "FLASH"}
	case containsAny(lower, procedureKeywords):
		return &Classification{Category: CategoryProcedural, SuggestedTier: "FLASH"}
	case containsAny(lower, businessKeywords):
		if containsAny(lower, complexityKeywords) {
			return &Classification{Category: CategoryBusinessComplex, SuggestedTier: "PRO"}
		}
		return &Classification{Category: CategoryBusinessSimple, SuggestedTier: "FLASH"}
	default:
		return &Classification{Category: CategoryOffTopic, SuggestedTier: "LITE"}
	}
}

var personalDataKeywords = []string{"my password", "credit card", "social security", "ktp number", "nomor ktp"}
var realtimeKeywords = []string{"weather", "cuaca", "news today", "berita hari ini", "current exchange rate", "stock price"}
var offTopicMarkers = []string{"recipe", "football score", "movie recommendation", "resep masakan"}

// IsOutOfDomain implements is_out_of_domain from spec §4.5 step 2: a
// keyword-rule gate independent of the LLM-backed Classifier.
func IsOutOfDomain(query string) (bool, OODCategory) {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, personalDataKeywords):
		return true, OODPersonalData
	case containsAny(lower, realtimeKeywords):
		return true, OODRealtimeInfo
	case containsAny(lower, offTopicMarkers):
		return true, OODOffTopic
	default:
		return false, ""
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
