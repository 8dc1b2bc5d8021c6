// Package errs represents the error taxonomy from the specification as a
// small set of sentinel errors and a Kind() accessor, rather than an
// exception-class hierarchy — each layer wraps with fmt.Errorf("...: %w")
// the way the teacher does throughout ai/rag and ai/providers/vectorstores.
package errs

import "errors"

// Kind classifies an error without requiring a type switch over concrete
// error structs.
type Kind int

const (
	KindUnknown Kind = iota
	KindClient
	KindTransientUpstream
	KindPersistentUpstream
	KindPartialData
	KindPolicy
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindTransientUpstream:
		return "transient_upstream"
	case KindPersistentUpstream:
		return "persistent_upstream"
	case KindPartialData:
		return "partial_data"
	case KindPolicy:
		return "policy"
	case KindInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Sentinel errors. Wrap with fmt.Errorf("context: %w", ErrX) at the point of
// origin; callers use errors.Is / Classify to recover the Kind.
var (
	ErrMalformedRequest    = errors.New("malformed request")
	ErrUnauthenticated     = errors.New("missing or invalid authentication")
	ErrUnknownSession      = errors.New("unknown session")
	ErrQuotaExhausted      = errors.New("upstream quota exhausted")
	ErrServiceUnavailable  = errors.New("upstream service unavailable")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrUpstreamTimeout     = errors.New("upstream call timed out")
	ErrAllTiersExhausted   = errors.New("all model tiers exhausted")
	ErrUpstreamAuth        = errors.New("upstream authentication failed")
	ErrUnexpectedShape     = errors.New("unexpected data shape")
	ErrOutOfDomain         = errors.New("query classified out of domain")
	ErrLeakedCredential    = errors.New("response flagged as leaking a credential")
	ErrInvariantViolated   = errors.New("invariant violated")
)

var kindOf = map[error]Kind{
	ErrMalformedRequest:   KindClient,
	ErrUnauthenticated:    KindClient,
	ErrUnknownSession:     KindClient,
	ErrQuotaExhausted:     KindTransientUpstream,
	ErrServiceUnavailable: KindTransientUpstream,
	ErrRateLimited:        KindTransientUpstream,
	ErrUpstreamTimeout:    KindTransientUpstream,
	ErrAllTiersExhausted:  KindPersistentUpstream,
	ErrUpstreamAuth:       KindPersistentUpstream,
	ErrUnexpectedShape:    KindPartialData,
	ErrOutOfDomain:        KindPolicy,
	ErrLeakedCredential:   KindPolicy,
	ErrInvariantViolated:  KindInvariantViolation,
}

// Classify walks the sentinel table with errors.Is to find the Kind of err.
// Returns KindUnknown if err does not wrap any recognized sentinel.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range kindOf {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Transient reports whether err should trigger tier fallback / retry rather
// than user-visible failure.
func Transient(err error) bool {
	return Classify(err) == KindTransientUpstream
}
