// Package httpapi implements the HTTP/SSE surface from spec §6: the two
// streaming chat endpoints plus the admin/debug endpoints for health,
// memory stats, and journey lookup.
//
// Grounded on agentoven-agentoven's control-plane router (chi.NewRouter +
// go-chi/cors, route groups via r.Route) for the router shape, and on the
// teacher's sse package (wrapped by internal/streaming) for the wire layer.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/journey"
	"github.com/balizero/agentcore/internal/llmgateway"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/memory"
	"github.com/balizero/agentcore/internal/orchestrator"
	"github.com/balizero/agentcore/internal/streaming"
)

// userIDContextKey is where the external auth edge is expected to stash the
// authenticated user id before the request reaches this router; populating
// it is out of scope here (spec §6's "authentication by the external edge
// layer populates a user record in the request scope").
type userIDContextKey struct{}

// WithUserID attaches userID to ctx the way an edge auth middleware would.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

func userIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDContextKey{}).(string)
	return v, ok && v != ""
}

// VectorHealth and RelHealth abstract internal/vectorstore.Store.Health and
// internal/relstore.Store.Health so this package doesn't need to import
// either concrete store package directly.
type VectorHealth interface {
	Health(ctx context.Context) error
}
type RelHealth interface {
	Health(ctx context.Context) error
}

// Deps wires every collaborator the router's handlers need.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Memory       *memory.Subsystem
	Gateway      *llmgateway.Gateway
	Journeys     *journey.Catalog
	Vector       VectorHealth
	Rel          RelHealth
	Log          logging.Logger
	CORSOrigins  []string
	// StreamConfig configures the dual stream/inter-chunk timeouts; a zero
	// value applies spec §6's 120s/30s defaults.
	StreamConfig streaming.Config
}

// NewRouter builds the HTTP router exposing exactly the endpoints in
// spec §6.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Session-Id"},
		AllowCredentials: len(origins) == 1 && origins[0] != "*",
		MaxAge:           300,
	}))

	h := &handlers{d: d}

	r.Get("/api/health", h.health)
	r.Get("/api/memory/stats", h.memoryStats)
	r.Get("/api/journeys/{id}", h.journeyByID)

	r.Get("/api/v2/bali-zero/chat-stream", h.chatStreamGet)
	r.Get("/bali-zero/chat-stream", h.chatStreamGet)
	r.Post("/api/chat/stream", h.chatStreamPost)

	return r
}

type handlers struct {
	d Deps
}

// --- health --------------------------------------------------------------

type healthResponse struct {
	ServicesInitialized bool            `json:"services_initialized"`
	Vector              string          `json:"vector_store"`
	Relational          string          `json:"relational_store"`
	LLMTiers            map[string]bool `json:"llm_tiers,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{ServicesInitialized: true, Vector: "ok", Relational: "ok"}

	if h.d.Vector != nil {
		if err := h.d.Vector.Health(ctx); err != nil {
			resp.Vector = "unavailable"
			resp.ServicesInitialized = false
		}
	}
	if h.d.Rel != nil {
		if err := h.d.Rel.Health(ctx); err != nil {
			resp.Relational = "unavailable"
			resp.ServicesInitialized = false
		}
	}
	if h.d.Gateway != nil {
		tiers := h.d.Gateway.HealthCheck(ctx)
		resp.LLMTiers = make(map[string]bool, len(tiers))
		for tier, ok := range tiers {
			resp.LLMTiers[string(tier)] = ok
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- memory stats ----------------------------------------------------------

func (h *handlers) memoryStats(w http.ResponseWriter, r *http.Request) {
	if h.d.Memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory subsystem not configured")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID, _ = userIDFromContext(r.Context())
	}

	stats, err := h.d.Memory.GetStats(r.Context(), userID)
	if err != nil {
		h.d.Log.Error("httpapi: memory stats failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load memory stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- journeys ----------------------------------------------------------

func (h *handlers) journeyByID(w http.ResponseWriter, r *http.Request) {
	if h.d.Journeys == nil {
		writeError(w, http.StatusServiceUnavailable, "journey catalog not configured")
		return
	}
	id := chi.URLParam(r, "id")
	tmpl, ok := h.d.Journeys.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown journey template")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// --- chat streaming ----------------------------------------------------------

// conversationTurnDTO is the wire shape of one conversation_history entry;
// kept distinct from domain.ConversationMessage so the domain model doesn't
// carry json tags purely for this one edge concern.
type conversationTurnDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t conversationTurnDTO) toDomain() domain.ConversationMessage {
	return domain.ConversationMessage{Role: domain.MessageRole(t.Role), Content: t.Content, At: time.Now()}
}

func toDomainHistory(turns []conversationTurnDTO) []domain.ConversationMessage {
	out := make([]domain.ConversationMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.toDomain())
	}
	return out
}

// chatStreamGet implements `GET /api/v2/bali-zero/chat-stream` (+ alias),
// spec §6: query string carries `query` and an optional JSON-encoded
// `conversation_history`.
func (h *handlers) chatStreamGet(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	var turns []conversationTurnDTO
	if raw := r.URL.Query().Get("conversation_history"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &turns); err != nil {
			writeError(w, http.StatusBadRequest, "conversation_history must be valid JSON")
			return
		}
	}

	userID, authed := userIDFromContext(r.Context())
	if !authed {
		userID = domain.AnonymousUserID
	}

	h.stream(w, r, orchestrator.Input{
		Query:     query,
		UserID:    userID,
		SessionID: r.URL.Query().Get("session_id"),
		Language:  r.URL.Query().Get("language"),
		History:   toDomainHistory(turns),
	})
}

// chatStreamRequest is the body of `POST /api/chat/stream`, per spec §6.
type chatStreamRequest struct {
	Message             string                `json:"message"`
	UserID              string                `json:"user_id"`
	SessionID           string                `json:"session_id"`
	ConversationHistory []conversationTurnDTO `json:"conversation_history"`
	Metadata            map[string]any        `json:"metadata"`
	ZantaraContext      map[string]any        `json:"zantara_context"`
	Language            string                `json:"language"`
}

func (h *handlers) chatStreamPost(w http.ResponseWriter, r *http.Request) {
	var req chatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	userID := req.UserID
	if userID == "" {
		if ctxUserID, authed := userIDFromContext(r.Context()); authed {
			userID = ctxUserID
		} else {
			userID = domain.AnonymousUserID
		}
	}

	h.stream(w, r, orchestrator.Input{
		Query:     req.Message,
		UserID:    userID,
		SessionID: req.SessionID,
		Language:  req.Language,
		History:   toDomainHistory(req.ConversationHistory),
	})
}

// stream drives a Stream from internal/streaming over in, per spec §4.5's
// StreamQuery/step contract and §7's "never raise to the HTTP edge" policy:
// every orchestrator failure becomes an SSE error event, never an HTTP
// error status once the stream has started.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request, in orchestrator.Input) {
	if h.d.Orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not configured")
		return
	}

	ctx := r.Context()
	st, err := streaming.New(ctx, w, h.d.StreamConfig)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	defer st.Close()

	errStreamExpired := errors.New("httpapi: stream expired")

	emit := func(event streaming.ChunkEventType, data any) error {
		// Per-chunk and whole-stream timeout enforcement (spec §4.7): every
		// event we're about to send is a natural suspension point, so check
		// both deadlines here rather than only at the top of the handler.
		if event != streaming.EventError && st.Expired() {
			_ = st.SendError("stream timed out")
			return errStreamExpired
		}
		switch event {
		case streaming.EventMetadata:
			p, _ := data.(streaming.MetadataPayload)
			return st.SendMetadata(p)
		case streaming.EventToken:
			p, _ := data.(streaming.TokenPayload)
			return st.SendToken(p.Text)
		case streaming.EventDone:
			p, _ := data.(streaming.DonePayload)
			return st.SendDone(p)
		case streaming.EventError:
			p, _ := data.(streaming.ErrorPayload)
			return st.SendError(p.Message)
		default:
			return nil
		}
	}

	if err := h.d.Orchestrator.StreamQuery(ctx, in, emit); err != nil && !errors.Is(err, errStreamExpired) {
		h.d.Log.Error("httpapi: stream query failed", err, logging.F("session_id", in.SessionID))
	}
}

// --- small helpers ----------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
