// Package background implements the post-stream background dispatch from
// spec §4.7: conversation persistence, CRM extraction, the collective-memory
// workflow, and analytics ingestion, none of which may surface failures to
// the client.
//
// Grounded on core/job.StreamJob, core/worker.StreamWorker, core/broker —
// a Dispatcher produces core/message.Msg envelopes that a StreamJob-driven
// worker consumes and routes to the named external collaborators (CRM,
// analytics) spec.md frames as out-of-scope, reached here by interface only.
package background

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/balizero/agentcore/core/broker"
	"github.com/balizero/agentcore/core/message"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/memory"
	"github.com/balizero/agentcore/pkg/safe"
)

// Kind is the closed set of background message kinds from spec §4.7.
type Kind string

const (
	KindConversationSave         Kind = "conversation.save"
	KindCRMExtract                Kind = "crm.extract"
	KindCollectiveMemoryWorkflow Kind = "collective_memory.workflow"
	KindAnalyticsPush            Kind = "analytics.push"
)

// Envelope is the wire shape every dispatched message.Msg carries.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// ConversationSavePayload persists one completed turn.
type ConversationSavePayload struct {
	SessionID string                      `json:"session_id"`
	UserID    string                      `json:"user_id"`
	Message   domain.ConversationMessage `json:"message"`
}

// CRMExtractPayload hands a completed turn to the CRM collaborator.
type CRMExtractPayload struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Transcript string `json:"transcript"`
}

// AnalyticsPushPayload reports one turn's usage metrics.
type AnalyticsPushPayload struct {
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	ModelUsed string    `json:"model_used"`
	At        time.Time `json:"at"`
}

// CollectiveMemoryWorkflowPayload seeds the multi-step consolidation
// pipeline for one turn.
type CollectiveMemoryWorkflowPayload struct {
	UserID            string `json:"user_id"`
	Query             string `json:"query"`
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// Dispatcher produces background work envelopes onto a broker.Producer. All
// dispatch failures are logged and swallowed, per spec §4.7/§7 — the caller
// is always past the point where it could still affect the client response.
type Dispatcher struct {
	producer broker.Producer
	log      logging.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(producer broker.Producer, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop{}
	}
	return &Dispatcher{producer: producer, log: log}
}

// Dispatch encodes payload into an Envelope of kind and produces it.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("background: failed to marshal payload", err, logging.F("kind", kind))
		return
	}
	env := Envelope{Kind: kind, Data: data}
	if err := d.producer.Produce(ctx, message.New(env)); err != nil {
		d.log.Error("background: failed to produce message", err, logging.F("kind", kind))
	}
}

// DispatchTurn schedules all four post-stream background tasks for one
// completed turn: conversation persistence, CRM extraction, the
// collective-memory workflow (spec §4.7's background dispatch list), and
// analytics ingestion.
func (d *Dispatcher) DispatchTurn(ctx context.Context, sessionID, userID, userMessage, assistantResponse, modelUsed string) {
	d.Dispatch(ctx, KindConversationSave, ConversationSavePayload{
		SessionID: sessionID,
		UserID:    userID,
		Message:   domain.ConversationMessage{Role: domain.RoleUser, Content: userMessage, At: stamp()},
	})
	d.Dispatch(ctx, KindCRMExtract, CRMExtractPayload{
		SessionID:  sessionID,
		UserID:     userID,
		Transcript: userMessage + "\n---\n" + assistantResponse,
	})
	d.Dispatch(ctx, KindCollectiveMemoryWorkflow, CollectiveMemoryWorkflowPayload{
		UserID:            userID,
		Query:             userMessage,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
	})
	d.Dispatch(ctx, KindAnalyticsPush, AnalyticsPushPayload{
		UserID:    userID,
		Query:     userMessage,
		ModelUsed: modelUsed,
		At:        stamp(),
	})
}

// stamp is the only escape hatch for wall-clock time in this package,
// isolated so tests can substitute a fixed clock if needed later.
var stamp = time.Now

// CRMClient is the named external CRM collaborator (out of scope per spec
// §5's Non-goals; reached by interface only).
type CRMClient interface {
	ExtractAndPersist(ctx context.Context, sessionID, userID, transcript string) error
}

// AnalyticsClient is the named external analytics-ingestion collaborator.
type AnalyticsClient interface {
	Push(ctx context.Context, p AnalyticsPushPayload) error
}

// ConversationStore persists a completed turn to the relational store.
type ConversationStore interface {
	AppendMessage(ctx context.Context, sessionID, userID string, msg domain.ConversationMessage) error
}

// Worker implements worker.StreamWorker, consuming Envelopes and routing
// each to its handler. A nil collaborator degrades its Kind to a logged
// no-op rather than failing the whole worker loop.
type Worker struct {
	Conversation ConversationStore
	CRM          CRMClient
	Analytics    AnalyticsClient
	Memory       *memory.Subsystem
	Log          logging.Logger
}

// Sleep backs off between empty broker polls.
func (w *Worker) Sleep() {
	time.Sleep(500 * time.Millisecond)
}

// Work implements worker.StreamWorker: decode the envelope and dispatch by
// kind. It never returns an error for a handler-level failure — only a
// malformed envelope is reported so the broker can Nack/redeliver it;
// handler failures are logged and the message is still acknowledged, since
// spec §7 states background failures "are logged but never surfaced."
func (w *Worker) Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error) {
	var env Envelope
	if err := msg.Unmarshal(&env); err != nil {
		return nil, fmt.Errorf("background: malformed envelope: %w", err)
	}

	switch env.Kind {
	case KindConversationSave:
		w.handleConversationSave(ctx, env.Data)
	case KindCRMExtract:
		w.handleCRMExtract(ctx, env.Data)
	case KindCollectiveMemoryWorkflow:
		w.handleCollectiveMemoryWorkflow(ctx, env.Data)
	case KindAnalyticsPush:
		w.handleAnalyticsPush(ctx, env.Data)
	default:
		w.logger().Warn("background: unknown envelope kind", logging.F("kind", env.Kind))
	}
	return nil, nil
}

func (w *Worker) logger() logging.Logger {
	if w.Log == nil {
		return logging.Nop{}
	}
	return w.Log
}

func (w *Worker) handleConversationSave(ctx context.Context, data json.RawMessage) {
	if w.Conversation == nil {
		return
	}
	var p ConversationSavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		w.logger().Error("background: bad conversation.save payload", err)
		return
	}
	if err := w.Conversation.AppendMessage(ctx, p.SessionID, p.UserID, p.Message); err != nil {
		w.logger().Error("background: conversation save failed", err, logging.F("session_id", p.SessionID))
	}
}

func (w *Worker) handleCRMExtract(ctx context.Context, data json.RawMessage) {
	if w.CRM == nil {
		return
	}
	var p CRMExtractPayload
	if err := json.Unmarshal(data, &p); err != nil {
		w.logger().Error("background: bad crm.extract payload", err)
		return
	}
	if err := w.CRM.ExtractAndPersist(ctx, p.SessionID, p.UserID, p.Transcript); err != nil {
		w.logger().Error("background: crm extraction failed", err, logging.F("session_id", p.SessionID))
	}
}

func (w *Worker) handleAnalyticsPush(ctx context.Context, data json.RawMessage) {
	if w.Analytics == nil {
		return
	}
	var p AnalyticsPushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		w.logger().Error("background: bad analytics.push payload", err)
		return
	}
	if err := w.Analytics.Push(ctx, p); err != nil {
		w.logger().Error("background: analytics push failed", err, logging.F("user_id", p.UserID))
	}
}

func (w *Worker) handleCollectiveMemoryWorkflow(ctx context.Context, data json.RawMessage) {
	if w.Memory == nil {
		return
	}
	var p CollectiveMemoryWorkflowPayload
	if err := json.Unmarshal(data, &p); err != nil {
		w.logger().Error("background: bad collective_memory.workflow payload", err)
		return
	}
	wf := NewCollectiveMemoryWorkflow(w.Memory, w.logger())
	if err := wf.Run(ctx, p); err != nil {
		w.logger().Error("background: collective memory workflow failed", err, logging.F("user_id", p.UserID))
	}
}

// defaultReconcileBatchSize bounds one cron tick's worth of embedding_synced
// backfill, per memory.Subsystem.ReconcileUnsynced.
const defaultReconcileBatchSize = 50

// ReconcileWorker implements worker.Worker (core/worker), retrying the
// collective-memory embedding mirror on a cron schedule. Registered via
// core/trigger.CronTrigger.AddWorkers in cmd/server/main.go.
type ReconcileWorker struct {
	Memory    *memory.Subsystem
	BatchSize int
	Log       logging.Logger
}

// Work runs one reconciliation pass. worker.Worker.Work takes no context and
// returns nothing, so ReconcileWorker owns its own background context and
// logs failures rather than propagating them. The cron scheduler that calls
// Work runs every registered job's tick in the same goroutine loop, so the
// pass is wrapped in safe.WithRecover to keep one bad tick from taking down
// the whole scheduler.
func (r *ReconcileWorker) Work() {
	log := r.Log
	if log == nil {
		log = logging.Nop{}
	}
	safe.WithRecover(r.run, func(err error) {
		log.Error("background: embedding_synced reconcile panicked", err)
	})()
}

func (r *ReconcileWorker) run() {
	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	log := r.Log
	if log == nil {
		log = logging.Nop{}
	}

	n, err := r.Memory.ReconcileUnsynced(context.Background(), batchSize)
	if err != nil {
		log.Error("background: embedding_synced reconcile failed", err)
		return
	}
	if n > 0 {
		log.Info("background: embedding_synced reconcile completed", logging.F("synced", n))
	}
}
