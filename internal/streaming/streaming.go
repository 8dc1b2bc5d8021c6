// Package streaming implements the SSE wire layer from spec §4.7: tagged
// ChunkEvent variants, dual stream/inter-chunk timeouts, and the required
// response headers.
//
// Grounded on and reusing the teacher's sse package (Writer/Message) for
// wire encoding and connection lifecycle; ChunkEvent replaces the source's
// duck-typed chunk (sometimes a dict, sometimes a "[METADATA]"-prefixed
// string) with the tagged variants the DESIGN NOTES section calls for, plus
// a LegacyCompat flag that also emits the old string form for existing
// clients.
package streaming

import (
	"context"
	"net/http"
	"time"

	"github.com/balizero/agentcore/sse"
)

// ChunkEventType is the closed tag set for a streamed chunk.
type ChunkEventType string

const (
	EventMetadata ChunkEventType = "metadata"
	EventToken    ChunkEventType = "token"
	EventDone     ChunkEventType = "done"
	EventError    ChunkEventType = "error"
)

// ChunkEvent is the tagged wire payload: `{type, data}` JSON per spec §4.7.
type ChunkEvent struct {
	Type ChunkEventType `json:"type"`
	Data any            `json:"data"`
}

// MetadataPayload is the Data field of the leading metadata event.
type MetadataPayload struct {
	ConversationID string `json:"conversation_id"`
	ModelTierHint  string `json:"model_tier_hint,omitempty"`
}

// TokenPayload is the Data field of a token event.
type TokenPayload struct {
	Text string `json:"text"`
}

// DonePayload is the Data field of the terminal done event.
type DonePayload struct {
	ModelUsed          string `json:"model_used"`
	TotalTokens        int    `json:"total_tokens,omitempty"`
	DocumentsConsulted int    `json:"documents_consulted,omitempty"`
}

// ErrorPayload is the Data field of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	// DefaultWholeStreamTimeout is the STREAM_TIMEOUT_SECONDS default.
	DefaultWholeStreamTimeout = 120 * time.Second
	// DefaultInterChunkTimeout is the CHUNK_TIMEOUT_SECONDS default.
	DefaultInterChunkTimeout = 30 * time.Second
)

// Config configures a Stream's timeouts and legacy-compat emission.
type Config struct {
	WholeStreamTimeout time.Duration
	InterChunkTimeout  time.Duration
	// LegacyCompat also emits each token in the deprecated untagged form (a
	// plain-text data line) before its tagged event, per spec §9's open
	// question. The old "[METADATA]..." string form of the metadata event is
	// not emitted.
	LegacyCompat bool
}

func (c *Config) withDefaults() Config {
	out := Config{WholeStreamTimeout: c.WholeStreamTimeout, InterChunkTimeout: c.InterChunkTimeout, LegacyCompat: c.LegacyCompat}
	if out.WholeStreamTimeout <= 0 {
		out.WholeStreamTimeout = DefaultWholeStreamTimeout
	}
	if out.InterChunkTimeout <= 0 {
		out.InterChunkTimeout = DefaultInterChunkTimeout
	}
	return out
}

// Stream wraps an sse.Writer with the dual-timeout and tagged-event
// contract from spec §4.7. One Stream is scoped to a single HTTP response.
type Stream struct {
	writer *sse.Writer
	cfg    Config

	wholeDeadline time.Time
	lastChunkAt   time.Time
}

// New sets the required SSE response headers and wraps w/r into a Stream.
// Exactly one of Send*/Close must run per request goroutine; New does not
// spawn its own watchdog — the caller polls the returned Stream's Expired
// between events to enforce the dual timeouts.
func New(ctx context.Context, w http.ResponseWriter, cfg Config) (*Stream, error) {
	w.Header().Set("X-Accel-Buffering", "no")

	writer, err := sse.NewWriter(&sse.WriterConfig{Context: ctx, ResponseWriter: w})
	if err != nil {
		return nil, err
	}

	c := cfg.withDefaults()
	now := time.Now()
	return &Stream{
		writer:        writer,
		cfg:           c,
		wholeDeadline: now.Add(c.WholeStreamTimeout),
		lastChunkAt:   now,
	}, nil
}

// Expired reports whether the whole-stream or inter-chunk deadline has
// passed. Callers should poll this between chunks (the orchestrator's
// natural suspension points, per spec §5) and terminate with SendError on
// true.
func (s *Stream) Expired() bool {
	now := time.Now()
	if now.After(s.wholeDeadline) {
		return true
	}
	return now.Sub(s.lastChunkAt) > s.cfg.InterChunkTimeout
}

// SendMetadata emits the leading metadata event.
func (s *Stream) SendMetadata(p MetadataPayload) error {
	return s.send(ChunkEvent{Type: EventMetadata, Data: p})
}

// SendToken emits one text chunk and resets the inter-chunk timer.
func (s *Stream) SendToken(text string) error {
	s.lastChunkAt = time.Now()
	if s.cfg.LegacyCompat {
		if err := s.writer.SendData(text); err != nil {
			return err
		}
	}
	return s.send(ChunkEvent{Type: EventToken, Data: TokenPayload{Text: text}})
}

// SendDone emits the terminal done event with a turn summary.
func (s *Stream) SendDone(p DonePayload) error {
	s.lastChunkAt = time.Now()
	return s.send(ChunkEvent{Type: EventDone, Data: p})
}

// SendError emits an error event. Per spec §7, internal cause detail never
// reaches this payload — callers pass only a user-visible message, never an
// internal error string.
func (s *Stream) SendError(message string) error {
	return s.send(ChunkEvent{Type: EventError, Data: ErrorPayload{Message: message}})
}

func (s *Stream) send(event ChunkEvent) error {
	return s.writer.SendData(event)
}

// Close releases the underlying writer.
func (s *Stream) Close() error {
	return s.writer.Close()
}
