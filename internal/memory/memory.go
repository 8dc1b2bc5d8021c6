// Package memory implements the dual-backed memory subsystem from spec
// §4.3: per-user facts and collective facts, relational source-of-truth
// plus vector-store semantic recall, the promotion rule, and the
// embedding-sync reconciler.
//
// No direct teacher equivalent exists (the teacher is a stateless AI
// framework); grounded on spec §4.3's operations list directly, using
// internal/relstore (pgx transactions) for the write path and
// internal/vectorstore for get_relevant_collective_context. The
// embedding_synced reconciler (ReconcileUnsynced) is driven by a
// background.ReconcileWorker registered with the teacher's
// core/trigger.CronTrigger in cmd/server/main.go.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/relstore"
	"github.com/balizero/agentcore/internal/vectorstore"
)

// CollectiveCollection is the fixed Qdrant collection collective facts are
// mirrored into for semantic recall.
const CollectiveCollection = "collective_memories"

// DefaultMinConfidence is get_relevant_collective_context's default
// min_confidence threshold (spec §4.3).
const DefaultMinConfidence = 0.5

// RelStore is the subset of relstore.Store the subsystem depends on.
type RelStore interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) error
	WithinTx(ctx context.Context, fn relstore.TxFunc) error
}

// VectorUpserter is the subset of vectorstore.Store the subsystem depends on
// for the collective-memory embedding mirror.
type VectorUpserter interface {
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	Search(ctx context.Context, collection string, vector []float32, topK int, filter vectorstore.Filter, minScore float64) ([]vectorstore.SearchResult, error)
	Delete(ctx context.Context, collection string, ids []string) error
}

// Embedder produces vectors for collective-fact content.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor pulls candidate per-user facts out of one conversation turn. The
// LLM gateway's LITE tier implements this in production; tests supply a
// stub.
type Extractor interface {
	ExtractFacts(ctx context.Context, userMessage, assistantResponse string) ([]ExtractedFact, error)
}

// ExtractedFact is one candidate fact surfaced by Extractor.
type ExtractedFact struct {
	Content    string
	Type       domain.FactType
	Confidence float64
}

// MemoryContext is the unified view get_user_context returns to the
// orchestrator.
type MemoryContext struct {
	ProfileFacts    []*domain.MemoryFact
	CollectiveFacts []*domain.CollectiveFact
	Summary         string
	Counters        map[string]int
	HasData         bool
}

// ProcessResult is process_conversation's return value.
type ProcessResult struct {
	FactsExtracted int
	FactsSaved     int
}

// ContributionResult is add_collective_contribution's return value.
type ContributionResult struct {
	Status      string // "created", "confirmed", "already_contributed"
	MemoryID    string
	SourceCount int
	IsPromoted  bool
	Confidence  float64
}

// RefuteResult is refute_fact's return value.
type RefuteResult struct {
	Status     string // "refuted", "removed", "already_refuted"
	Confidence float64
}

const (
	statusCreated            = "created"
	statusConfirmed          = "confirmed"
	statusAlreadyContributed = "already_contributed"
	statusRefuted            = "refuted"
	statusRemoved            = "removed"
	statusAlreadyRefuted     = "already_refuted"
)

// Subsystem implements the memory operations.
type Subsystem struct {
	rel                RelStore
	vec                VectorUpserter
	embedder           Embedder
	extractor          Extractor
	log                logging.Logger
	promotionThreshold int
	maxProfileFacts    int
}

// Config configures a Subsystem.
type Config struct {
	PromotionThreshold int // default domain.PromotionThreshold
	MaxProfileFacts    int // default domain.MaxProfileFacts
}

// New builds a Subsystem. extractor may be nil, in which case
// process_conversation always reports zero extracted facts.
func New(rel RelStore, vec VectorUpserter, embedder Embedder, extractor Extractor, log logging.Logger, cfg Config) *Subsystem {
	threshold := cfg.PromotionThreshold
	if threshold <= 0 {
		threshold = domain.PromotionThreshold
	}
	maxFacts := cfg.MaxProfileFacts
	if maxFacts <= 0 {
		maxFacts = domain.MaxProfileFacts
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Subsystem{
		rel:                rel,
		vec:                vec,
		embedder:           embedder,
		extractor:          extractor,
		log:                log,
		promotionThreshold: threshold,
		maxProfileFacts:    maxFacts,
	}
}

// GetUserContext returns a MemoryContext for userID, empty on an unknown
// user (spec §4.3). The anonymous sentinel user never has persisted data.
func (s *Subsystem) GetUserContext(ctx context.Context, userID string) (*MemoryContext, error) {
	if userID == "" || userID == domain.AnonymousUserID {
		return &MemoryContext{Counters: map[string]int{}}, nil
	}

	var summary string
	var countersJSON []byte
	row := s.rel.QueryRow(ctx, `SELECT summary, counters_json FROM user_memories WHERE user_id = $1`, userID)
	switch err := row.Scan(&summary, &countersJSON); {
	case errors.Is(err, pgx.ErrNoRows):
		return &MemoryContext{Counters: map[string]int{}}, nil
	case err != nil:
		return nil, fmt.Errorf("memory: failed to load user_memories for %s: %w", userID, err)
	}

	counters := map[string]int{}
	_ = json.Unmarshal(countersJSON, &counters)

	facts, err := s.loadProfileFacts(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &MemoryContext{
		ProfileFacts: facts,
		Summary:      summary,
		Counters:     counters,
		HasData:      true,
	}, nil
}

func (s *Subsystem) loadProfileFacts(ctx context.Context, userID string) ([]*domain.MemoryFact, error) {
	rows, err := s.rel.Query(ctx,
		`SELECT id, content, fact_type, source, confidence, created_at
		   FROM memory_facts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, s.maxProfileFacts)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to load facts for %s: %w", userID, err)
	}
	defer rows.Close()

	var facts []*domain.MemoryFact
	for rows.Next() {
		f := &domain.MemoryFact{UserID: userID}
		if err := rows.Scan(&f.ID, &f.Content, &f.Type, &f.Source, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: failed to scan fact row: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ProcessConversation runs Extractor over one turn and persists the
// extracted facts, reporting facts_extracted >= facts_saved on partial
// failure (spec §4.3) rather than aborting the whole batch.
func (s *Subsystem) ProcessConversation(ctx context.Context, userID, userMessage, assistantResponse string) (*ProcessResult, error) {
	if userID == "" || userID == domain.AnonymousUserID || s.extractor == nil {
		return &ProcessResult{}, nil
	}

	extracted, err := s.extractor.ExtractFacts(ctx, userMessage, assistantResponse)
	if err != nil {
		return &ProcessResult{}, nil // extraction failure degrades to zero, never raises
	}

	result := &ProcessResult{FactsExtracted: len(extracted)}
	if len(extracted) == 0 {
		return result, nil
	}

	if err := s.ensureUserMemory(ctx, userID); err != nil {
		return result, err
	}

	for _, ef := range extracted {
		content := strings.TrimSpace(ef.Content)
		if content == "" {
			continue
		}
		if len(content) > domain.MaxFactContentLen {
			content = content[:domain.MaxFactContentLen]
		}
		err := s.rel.Exec(ctx,
			`INSERT INTO memory_facts (id, user_id, content, fact_type, source, confidence, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), userID, content, string(ef.Type), string(domain.SourceInferred), ef.Confidence, time.Now())
		if err != nil {
			s.log.Warn("memory: failed to save extracted fact", logging.F("user_id", userID), logging.F("error", err.Error()))
			continue
		}
		result.FactsSaved++
	}

	return result, nil
}

func (s *Subsystem) ensureUserMemory(ctx context.Context, userID string) error {
	return s.rel.Exec(ctx,
		`INSERT INTO user_memories (user_id, profile_facts_json, summary, counters_json, updated_at)
		 VALUES ($1, '[]', '', '{}', $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, time.Now())
}

// AddCollectiveContribution implements the dedup-by-content-hash promotion
// rule verbatim from spec §4.3.
func (s *Subsystem) AddCollectiveContribution(ctx context.Context, userID, content string, category domain.CollectiveCategory, metadata map[string]any) (*ContributionResult, error) {
	hash := contentHash(content)

	var result *ContributionResult
	err := s.rel.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var memoryID string
		var sourceCount int
		var isPromoted bool
		var confidence float64

		row := tx.QueryRow(ctx,
			`SELECT id, source_count, is_promoted, confidence FROM collective_memories WHERE content_hash = $1 FOR UPDATE`,
			hash)
		err := row.Scan(&memoryID, &sourceCount, &isPromoted, &confidence)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			memoryID = uuid.NewString()
			metaJSON, _ := json.Marshal(metadata)
			now := time.Now()
			if _, err := tx.Exec(ctx,
				`INSERT INTO collective_memories (id, content, content_hash, category, source_count, is_promoted, confidence, metadata_json, first_learned_at, last_confirmed_at, embedding_synced)
				 VALUES ($1, $2, $3, $4, 1, false, 0.5, $5, $6, $6, false)`,
				memoryID, content, hash, string(category), metaJSON, now); err != nil {
				return fmt.Errorf("memory: failed to insert collective_memory: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO collective_memory_sources (memory_id, user_id, action, contributed_at) VALUES ($1, $2, $3, $4)`,
				memoryID, userID, string(domain.ActionContribute), now); err != nil {
				return fmt.Errorf("memory: failed to insert source row: %w", err)
			}
			// New facts start unpromoted at half confidence, matching the
			// original collective-memory service's fresh-fact default.
			result = &ContributionResult{Status: statusCreated, MemoryID: memoryID, SourceCount: 1, IsPromoted: false, Confidence: 0.5}
			return nil
		case err != nil:
			return fmt.Errorf("memory: failed to look up collective_memory: %w", err)
		}

		var already int
		err = tx.QueryRow(ctx,
			`SELECT count(*) FROM collective_memory_sources WHERE memory_id = $1 AND user_id = $2 AND action IN ($3, $4)`,
			memoryID, userID, string(domain.ActionContribute), string(domain.ActionConfirm)).Scan(&already)
		if err != nil {
			return fmt.Errorf("memory: failed to check prior contribution: %w", err)
		}
		if already > 0 {
			result = &ContributionResult{Status: statusAlreadyContributed, MemoryID: memoryID, SourceCount: sourceCount, IsPromoted: isPromoted, Confidence: confidence}
			return nil
		}

		now := time.Now()
		if _, err := tx.Exec(ctx,
			`INSERT INTO collective_memory_sources (memory_id, user_id, action, contributed_at) VALUES ($1, $2, $3, $4)`,
			memoryID, userID, string(domain.ActionConfirm), now); err != nil {
			return fmt.Errorf("memory: failed to insert confirm source: %w", err)
		}

		newCount, newConfidence, err := s.recomputeCounts(ctx, tx, memoryID)
		if err != nil {
			return err
		}
		newPromoted := newCount >= s.promotionThreshold

		if _, err := tx.Exec(ctx,
			`UPDATE collective_memories SET source_count = $1, is_promoted = $2, confidence = $3, last_confirmed_at = $4 WHERE id = $5`,
			newCount, newPromoted, newConfidence, now, memoryID); err != nil {
			return fmt.Errorf("memory: failed to update collective_memory: %w", err)
		}

		result = &ContributionResult{Status: statusConfirmed, MemoryID: memoryID, SourceCount: newCount, IsPromoted: newPromoted, Confidence: newConfidence}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status != statusAlreadyContributed && s.vec != nil && s.embedder != nil {
		s.mirrorToVectorStore(ctx, result.MemoryID, content, category, result)
	}

	return result, nil
}

// recomputeCounts implements the precise promotion rule from spec §4.3:
// source_count counts distinct user_ids with action in {contribute,
// confirm}; confidence = (contribute+confirm)/(contribute+confirm+refute).
func (s *Subsystem) recomputeCounts(ctx context.Context, tx pgx.Tx, memoryID string) (int, float64, error) {
	var distinctPositive int
	if err := tx.QueryRow(ctx,
		`SELECT count(DISTINCT user_id) FROM collective_memory_sources WHERE memory_id = $1 AND action IN ($2, $3)`,
		memoryID, string(domain.ActionContribute), string(domain.ActionConfirm)).Scan(&distinctPositive); err != nil {
		return 0, 0, fmt.Errorf("memory: failed to count positive sources: %w", err)
	}

	var positive, negative int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE action IN ($1, $2)), count(*) FILTER (WHERE action = $3)
		   FROM collective_memory_sources WHERE memory_id = $4`,
		string(domain.ActionContribute), string(domain.ActionConfirm), string(domain.ActionRefute), memoryID).
		Scan(&positive, &negative); err != nil {
		return 0, 0, fmt.Errorf("memory: failed to count actions: %w", err)
	}

	total := positive + negative
	confidence := 1.0
	if total > 0 {
		confidence = float64(positive) / float64(total)
	}
	return distinctPositive, confidence, nil
}

func (s *Subsystem) mirrorToVectorStore(ctx context.Context, memoryID, content string, category domain.CollectiveCategory, result *ContributionResult) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.log.Warn("memory: embedding mirror skipped", logging.F("memory_id", memoryID), logging.F("error", err.Error()))
		return
	}
	err = s.vec.Upsert(ctx, CollectiveCollection, []vectorstore.Point{{
		ID:     memoryID,
		Vector: vec,
		Payload: map[string]any{
			"text":        content,
			"category":    string(category),
			"is_promoted": result.IsPromoted,
			"confidence":  result.Confidence,
		},
	}})
	if err != nil {
		s.log.Warn("memory: embedding mirror upsert failed", logging.F("memory_id", memoryID), logging.F("error", err.Error()))
		return
	}
	_ = s.rel.Exec(ctx, `UPDATE collective_memories SET embedding_synced = true WHERE id = $1`, memoryID)
}

// RefuteFact implements the idempotent refute/delete rule from spec §4.3.
func (s *Subsystem) RefuteFact(ctx context.Context, userID, factID, reason string) (*RefuteResult, error) {
	if reason != "" {
		s.log.Debug("memory: fact refuted", logging.F("fact_id", factID), logging.F("user_id", userID), logging.F("reason", reason))
	}

	var result *RefuteResult
	err := s.rel.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var already int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM collective_memory_sources WHERE memory_id = $1 AND user_id = $2 AND action = $3`,
			factID, userID, string(domain.ActionRefute)).Scan(&already); err != nil {
			return fmt.Errorf("memory: failed to check prior refute: %w", err)
		}
		if already > 0 {
			result = &RefuteResult{Status: statusAlreadyRefuted}
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO collective_memory_sources (memory_id, user_id, action, contributed_at) VALUES ($1, $2, $3, $4)`,
			factID, userID, string(domain.ActionRefute), time.Now()); err != nil {
			return fmt.Errorf("memory: failed to insert refute source: %w", err)
		}

		count, confidence, err := s.recomputeCounts(ctx, tx, factID)
		if err != nil {
			return err
		}

		if confidence < domain.MinConfidence {
			if _, err := tx.Exec(ctx, `DELETE FROM collective_memories WHERE id = $1`, factID); err != nil {
				return fmt.Errorf("memory: failed to delete low-confidence fact: %w", err)
			}
			result = &RefuteResult{Status: statusRemoved, Confidence: confidence}
			return nil
		}

		promoted := count >= s.promotionThreshold
		if _, err := tx.Exec(ctx,
			`UPDATE collective_memories SET source_count = $1, is_promoted = $2, confidence = $3 WHERE id = $4`,
			count, promoted, confidence, factID); err != nil {
			return fmt.Errorf("memory: failed to update fact after refute: %w", err)
		}
		result = &RefuteResult{Status: statusRefuted, Confidence: confidence}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == statusRemoved && s.vec != nil {
		if err := s.vec.Delete(ctx, CollectiveCollection, []string{factID}); err != nil {
			s.log.Warn("memory: vector mirror delete failed", logging.F("fact_id", factID), logging.F("error", err.Error()))
		}
	}
	return result, nil
}

// GetRelevantCollectiveContext runs a semantic search over the collective
// memory collection, filtered to is_promoted and min_confidence, falling
// back to a plain relational score-ordered query on vector-search failure
// (spec §4.3).
func (s *Subsystem) GetRelevantCollectiveContext(ctx context.Context, query string, category domain.CollectiveCategory, limit int, minConfidence float64) ([]*domain.CollectiveFact, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	if s.vec != nil && s.embedder != nil {
		if facts, err := s.searchVector(ctx, query, category, limit, minConfidence); err == nil {
			return facts, nil
		}
	}
	return s.searchRelationalFallback(ctx, category, limit, minConfidence)
}

func (s *Subsystem) searchVector(ctx context.Context, query string, category domain.CollectiveCategory, limit int, minConfidence float64) ([]*domain.CollectiveFact, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	filter := vectorstore.Filter{"is_promoted": true}
	if category != "" {
		filter["category"] = string(category)
	}
	hits, err := s.vec.Search(ctx, CollectiveCollection, vec, limit, filter, 0)
	if err != nil {
		return nil, err
	}

	facts := make([]*domain.CollectiveFact, 0, len(hits))
	for _, h := range hits {
		confidence, _ := h.Payload["confidence"].(float64)
		if confidence < minConfidence {
			continue
		}
		content, _ := h.Payload["text"].(string)
		cat, _ := h.Payload["category"].(string)
		facts = append(facts, &domain.CollectiveFact{
			ID:         h.ID,
			Content:    content,
			Category:   domain.CollectiveCategory(cat),
			Confidence: confidence,
			Promoted:   true,
		})
	}
	return facts, nil
}

func (s *Subsystem) searchRelationalFallback(ctx context.Context, category domain.CollectiveCategory, limit int, minConfidence float64) ([]*domain.CollectiveFact, error) {
	sql := `SELECT id, content, category, confidence, source_count, is_promoted, first_learned_at, last_confirmed_at
	          FROM collective_memories WHERE is_promoted = true AND confidence >= $1`
	args := []any{minConfidence}
	if category != "" {
		sql += " AND category = $2"
		args = append(args, string(category))
	}
	sql += " ORDER BY confidence DESC LIMIT " + fmt.Sprintf("%d", limit)

	rows, err := s.rel.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: fallback collective search failed: %w", err)
	}
	defer rows.Close()

	var facts []*domain.CollectiveFact
	for rows.Next() {
		f := &domain.CollectiveFact{}
		var cat string
		if err := rows.Scan(&f.ID, &f.Content, &cat, &f.Confidence, &f.SourceCount, &f.Promoted, &f.FirstLearnedAt, &f.LastConfirmedAt); err != nil {
			return nil, fmt.Errorf("memory: failed to scan collective_memory row: %w", err)
		}
		f.Category = domain.CollectiveCategory(cat)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// MemoryStats backs the admin/debug memory-stats endpoint.
type MemoryStats struct {
	ProfileFactCount    int
	CollectiveFactCount int
	PromotedFactCount   int
}

// GetStats reports aggregate counts for userID's profile plus the global
// collective-memory table.
func (s *Subsystem) GetStats(ctx context.Context, userID string) (*MemoryStats, error) {
	stats := &MemoryStats{}
	if userID != "" && userID != domain.AnonymousUserID {
		if err := s.rel.QueryRow(ctx, `SELECT count(*) FROM memory_facts WHERE user_id = $1`, userID).Scan(&stats.ProfileFactCount); err != nil {
			return nil, fmt.Errorf("memory: failed to count profile facts: %w", err)
		}
	}
	if err := s.rel.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE is_promoted)  FROM collective_memories`).Scan(&stats.CollectiveFactCount, &stats.PromotedFactCount); err != nil {
		return nil, fmt.Errorf("memory: failed to count collective facts: %w", err)
	}
	return stats, nil
}

// ReconcileUnsynced is the embedding_synced background reconciler: it
// retries the vector-store mirror for any collective fact whose upsert
// previously failed. Called on a schedule by background.ReconcileWorker,
// registered with a core/trigger.CronTrigger in cmd/server/main.go.
func (s *Subsystem) ReconcileUnsynced(ctx context.Context, batchSize int) (int, error) {
	if s.vec == nil || s.embedder == nil {
		return 0, nil
	}

	rows, err := s.rel.Query(ctx,
		`SELECT id, content, category, is_promoted, confidence FROM collective_memories WHERE embedding_synced = false LIMIT $1`,
		batchSize)
	if err != nil {
		return 0, fmt.Errorf("memory: failed to list unsynced facts: %w", err)
	}

	type pending struct {
		id, content, category string
		promoted              bool
		confidence            float64
	}
	var items []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content, &p.category, &p.promoted, &p.confidence); err != nil {
			rows.Close()
			return 0, fmt.Errorf("memory: failed to scan unsynced row: %w", err)
		}
		items = append(items, p)
	}
	rows.Close()

	synced := 0
	for _, p := range items {
		s.mirrorToVectorStore(ctx, p.id, p.content, domain.CollectiveCategory(p.category), &ContributionResult{IsPromoted: p.promoted, Confidence: p.confidence})
		synced++
	}
	return synced, nil
}

func contentHash(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
