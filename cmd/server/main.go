// Command server wires every process-wide singleton (embedder, vector
// store, relational pool, LLM gateway, tool registry, golden-router table,
// cache) and serves the HTTP/SSE surface from internal/httpapi. No reranker
// is constructed: the retrieval service is built with a nil reranker.
//
// Grounded on agentoven-agentoven's cmd/server main (flat env-driven
// construction, one process-wide container, graceful shutdown on SIGINT/
// SIGTERM).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/balizero/agentcore/core/broker"
	"github.com/balizero/agentcore/core/job"
	"github.com/balizero/agentcore/core/trigger"
	"github.com/balizero/agentcore/internal/background"
	"github.com/balizero/agentcore/internal/cache"
	"github.com/balizero/agentcore/internal/chatmsg"
	"github.com/balizero/agentcore/internal/config"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/embedding"
	"github.com/balizero/agentcore/internal/goldenrouter"
	"github.com/balizero/agentcore/internal/httpapi"
	"github.com/balizero/agentcore/internal/intent"
	"github.com/balizero/agentcore/internal/journey"
	"github.com/balizero/agentcore/internal/llmgateway"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/memory"
	"github.com/balizero/agentcore/internal/orchestrator"
	"github.com/balizero/agentcore/internal/promptbuilder"
	"github.com/balizero/agentcore/internal/relstore"
	"github.com/balizero/agentcore/internal/retrieval"
	"github.com/balizero/agentcore/internal/tool"
	"github.com/balizero/agentcore/internal/toolslib"
	"github.com/balizero/agentcore/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("server: failed to load config: %w", err)
	}
	log := logging.New(cfg.LogLevel)

	rel, err := relstore.New(ctx, &relstore.Config{
		DSN:     cfg.DatabaseURL,
		MaxSize: 20,
		Logger:  warnAdapter{log},
	})
	if err != nil {
		return fmt.Errorf("server: failed to open relational store: %w", err)
	}
	defer rel.Close()

	vec, err := vectorstore.New(&vectorstore.Config{URL: cfg.VectorStoreURL, APIKey: cfg.VectorStoreAPIKey})
	if err != nil {
		return fmt.Errorf("server: failed to open vector store: %w", err)
	}
	if err := vec.EnsureCollection(ctx, memory.CollectiveCollection, embedding.Dimensions); err != nil {
		log.Warn("server: collective collection ensure failed", logging.F("error", err.Error()))
	}

	embedder, err := embedding.New(&embedding.Config{
		Provider:      cfg.EmbeddingProvider,
		PrimaryAPIKey: cfg.LLMAPIKeyPrimary,
	})
	if err != nil {
		return fmt.Errorf("server: failed to build embedder: %w", err)
	}

	gateway, err := llmgateway.New(&llmgateway.Config{
		APIKeyPrimary:  cfg.LLMAPIKeyPrimary,
		APIKeyFallback: cfg.LLMAPIKeyFallback,
	}, nil) // ExternalClient multiplexer not wired: no concrete third-party
	// implementation exists in this deployment; EXTERNAL tier calls
	// degrade to errs.ErrServiceUnavailable until one is configured.
	if err != nil {
		return fmt.Errorf("server: failed to build llm gateway: %w", err)
	}

	mem := memory.New(rel, vec, embedder, llmExtractor{gateway}, log, memory.Config{
		PromotionThreshold: cfg.PromotionThreshold,
		MaxProfileFacts:    0, // defaults to domain.MaxProfileFacts
	})

	reg := tool.NewRegistry()
	if err := toolslib.RegisterAll(reg,
		retrievalVectorSearcher{buildRetrievalService(embedder, vec, log)},
		relStoreRowAdapter{rel},
		"parent_documents", "title",
		nil, // PricingProvider: named external collaborator, out of scope
		nil, // WebSearchProvider: named external collaborator, out of scope
		nil, // VisionProvider: named external collaborator, out of scope
	); err != nil {
		return fmt.Errorf("server: failed to register tools: %w", err)
	}

	golden, err := goldenrouter.Load("configs/golden_routes.yaml")
	if err != nil {
		log.Warn("server: golden route table failed to load", logging.F("error", err.Error()))
		golden = &goldenrouter.Router{}
	}

	journeys, err := journey.Load("configs/journeys.yaml")
	if err != nil {
		log.Warn("server: journey catalog failed to load", logging.F("error", err.Error()))
	}

	prompts, err := promptbuilder.New(0)
	if err != nil {
		return fmt.Errorf("server: failed to build prompt builder: %w", err)
	}

	intentGate := intent.New(nil) // nil Classifier: keywordClassify fallback only

	bk, err := buildBroker(cfg)
	if err != nil {
		return fmt.Errorf("server: failed to build broker: %w", err)
	}
	defer bk.Close()

	dispatcher := background.NewDispatcher(bk, log)

	orch := orchestrator.New(orchestrator.Config{
		IntentGate:  intentGate,
		Golden:      golden,
		Memory:      mem,
		Gateway:     gateway,
		Tools:       reg,
		Prompts:     prompts,
		Dispatcher:  dispatcher,
		Log:         log,
		ContactLine: "For a detailed, personalized answer, reach out to the Bali Zero team directly.",
	})

	bgWorker := &background.Worker{Memory: mem, Conversation: relConversationStore{rel}, Log: log}
	bgJob := job.NewStreamJob(&job.StreamJobOptions{
		Config: &job.StreamJobConfig{MaxWork: 4},
		Worker: bgWorker,
		Broker: bk,
	})
	if err := bgJob.Start(ctx); err != nil {
		return fmt.Errorf("server: failed to start background job: %w", err)
	}
	defer bgJob.Stop()

	reconcileCron := trigger.NewCronTrigger(&trigger.CronTriggerOptions{Spec: "0 */10 * * * *"})
	reconcileWorker := &background.ReconcileWorker{Memory: mem, Log: log}
	if _, err := reconcileCron.AddWorkers(ctx, reconcileWorker); err != nil {
		log.Warn("server: embedding_synced reconcile cron registration failed", logging.F("error", err.Error()))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Orchestrator: orch,
		Memory:       mem,
		Gateway:      gateway,
		Journeys:     journeys,
		Vector:       vec,
		Rel:          rel,
		Log:          log,
	})

	addr := ":8080"
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server: listening", logging.F("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildBroker(cfg *config.CoreSettings) (broker.Broker, error) {
	switch cfg.BrokerBackend {
	case "kafka":
		return broker.NewKafka(&broker.KafkaConfig{Address: cfg.BrokerAddress, Topic: cfg.BrokerTopic})
	case "pulsar":
		return broker.NewPulsar(&broker.PulsarConfig{URL: cfg.BrokerAddress, Topic: cfg.BrokerTopic})
	default:
		return &broker.MockBroker{}, nil
	}
}

func buildRetrievalService(embedder *embedding.Adapter, vec *vectorstore.Store, log logging.Logger) *retrieval.Service {
	// No cross-encoder Scorer is wired yet (named external collaborator,
	// out of scope); a nil *rerank.Reranker disables the rerank pass
	// rather than constructing one around a nil Scorer, which would panic
	// on the first Score call.
	return retrieval.New(embedder, vec, nil, nil, cache.New(cache.DefaultMaxEntries, cache.DefaultTTL, nil))
}

// retrievalVectorSearcher adapts *retrieval.Service to the narrower
// toolslib.VectorSearcher interface the vector_search tool depends on.
type retrievalVectorSearcher struct {
	svc *retrieval.Service
}

func (r retrievalVectorSearcher) Search(ctx context.Context, query, userLevel string, limit int, applyFilters bool) (*retrieval.SearchResponse, error) {
	return r.svc.Search(ctx, query, userLevel, limit, applyFilters)
}

// relStoreRowAdapter adapts *relstore.Store's pgx.Rows return to
// toolslib.RowScanner, which avoids importing pgx directly into toolslib.
// pgx.Rows already implements every method RowScanner needs.
type relStoreRowAdapter struct {
	store *relstore.Store
}

func (a relStoreRowAdapter) Query(ctx context.Context, sql string, args ...any) (toolslib.RowScanner, error) {
	rows, err := a.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// relConversationStore adapts *relstore.Store into background.ConversationStore,
// appending one message onto the conversations row's ordered JSON array
// (internal/relstore/migrations/0001_init.up.sql).
type relConversationStore struct {
	store *relstore.Store
}

func (r relConversationStore) AppendMessage(ctx context.Context, sessionID, userID string, msg domain.ConversationMessage) error {
	return r.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT messages_json FROM conversations WHERE session_id = $1 FOR UPDATE`, sessionID).Scan(&raw)

		var messages []domain.ConversationMessage
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// first message for this session
		case err != nil:
			return fmt.Errorf("relConversationStore: failed to load conversation %s: %w", sessionID, err)
		default:
			if err := json.Unmarshal(raw, &messages); err != nil {
				return fmt.Errorf("relConversationStore: failed to decode messages for %s: %w", sessionID, err)
			}
		}
		messages = append(messages, msg)

		encoded, err := json.Marshal(messages)
		if err != nil {
			return fmt.Errorf("relConversationStore: failed to encode messages for %s: %w", sessionID, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO conversations (session_id, user_id, messages_json, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id) DO UPDATE SET
			   user_id = EXCLUDED.user_id,
			   messages_json = EXCLUDED.messages_json,
			   updated_at = EXCLUDED.updated_at`,
			sessionID, userID, encoded, time.Now()); err != nil {
			return fmt.Errorf("relConversationStore: failed to upsert conversation %s: %w", sessionID, err)
		}
		return nil
	})
}

// warnAdapter adapts logging.Logger to relstore.Logger's narrower
// Warn(msg string, kv ...any) shape.
type warnAdapter struct {
	log logging.Logger
}

func (a warnAdapter) Warn(msg string, kv ...any) {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, logging.F(key, kv[i+1]))
	}
	a.log.Warn(msg, fields...)
}

// llmExtractor adapts the LLM gateway's LITE tier into memory.Extractor,
// per memory.go's doc comment: "The LLM gateway's LITE tier implements
// this in production."
type llmExtractor struct {
	gateway *llmgateway.Gateway
}

func (e llmExtractor) ExtractFacts(ctx context.Context, userMessage, assistantResponse string) ([]memory.ExtractedFact, error) {
	return extractFactsViaLLM(ctx, e.gateway, userMessage, assistantResponse)
}

// extractFactsSystemPrompt instructs the LITE tier to emit strict JSON so the
// result can be decoded without a tool-call round trip.
const extractFactsSystemPrompt = `You extract durable facts about the user from one conversation turn for a
long-term memory store. Respond with ONLY a JSON array, no prose, no code
fences. Each element: {"content": string, "type": one of
"identity","location","preference","event","goal","general", "confidence":
number between 0 and 1}. Extract only facts stated or clearly implied by the
user; return [] if none. Facts must be short, self-contained statements.`

type extractedFactWire struct {
	Content    string  `json:"content"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// extractFactsViaLLM implements memory.Extractor on top of the gateway's
// LITE tier, per memory.go's own doc comment: "The LLM gateway's LITE tier
// implements this in production."
func extractFactsViaLLM(ctx context.Context, gateway *llmgateway.Gateway, userMessage, assistantResponse string) ([]memory.ExtractedFact, error) {
	state := &chatmsg.ChatState{System: extractFactsSystemPrompt}
	turn := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantResponse)

	resp, err := gateway.SendMessage(ctx, state, turn, llmgateway.TierLITE, false, nil)
	if err != nil {
		return nil, fmt.Errorf("extractFactsViaLLM: %w", err)
	}

	raw := strings.TrimSpace(resp.Text)
	if raw == "" {
		return nil, nil
	}

	var wire []extractedFactWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("extractFactsViaLLM: malformed extraction response: %w", err)
	}

	facts := make([]memory.ExtractedFact, 0, len(wire))
	for _, w := range wire {
		content := strings.TrimSpace(w.Content)
		if content == "" {
			continue
		}
		facts = append(facts, memory.ExtractedFact{
			Content:    content,
			Type:       domain.FactType(w.Type),
			Confidence: w.Confidence,
		})
	}
	return facts, nil
}
