// Package rerank cross-encoder re-scores retrieved chunks, supporting
// multi-source merge and batch, per spec §2/§4.2. Grounded on the teacher's
// ai/rag/document/refiners RankRefiner (sort-by-score, trim-to-topK),
// generalized so the score comes from a remote cross-encoder call instead
// of the pre-existing similarity score.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/balizero/agentcore/internal/domain"
)

// Scorer calls a remote cross-encoder endpoint to produce a relevance score
// for (query, chunk text) pairs. Implementations own their own HTTP/timeout
// concerns; Reranker only orchestrates batching and sorting.
type Scorer interface {
	// Score returns one relevance score per text, in the same order as
	// texts, for the given query.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker re-scores and trims chunks.
type Reranker struct {
	scorer    Scorer
	batchSize int
}

// New builds a Reranker. batchSize <= 0 defaults to 32.
func New(scorer Scorer, batchSize int) *Reranker {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Reranker{scorer: scorer, batchSize: batchSize}
}

// Rerank scores every chunk against query in batches, sets
// RetrievedChunk.RerankedScore, and returns the top-k chunks ordered by
// reranked score descending, ties broken by original similarity (spec
// §4.2 result guarantee).
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []*domain.RetrievedChunk, topK int) ([]*domain.RetrievedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	for start := 0; start < len(chunks); start += r.batchSize {
		end := min(start+r.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		scores, err := r.scorer.Score(ctx, query, texts)
		if err != nil {
			return nil, fmt.Errorf("rerank: scoring batch [%d:%d] failed: %w", start, end, err)
		}
		if len(scores) != len(batch) {
			return nil, fmt.Errorf("rerank: expected %d scores, got %d", len(batch), len(scores))
		}
		for i, s := range scores {
			batch[i].RerankedScore = s
		}
	}

	sorted := make([]*domain.RetrievedChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RerankedScore != sorted[j].RerankedScore {
			return sorted[i].RerankedScore > sorted[j].RerankedScore
		}
		return sorted[i].Score > sorted[j].Score
	})

	if topK > 0 && len(sorted) > topK {
		sorted = sorted[:topK]
	}
	return sorted, nil
}

// MergeMultiSource flattens chunks from several collections into one slice
// before reranking, used by the retrieval service's search_multi_source
// cross-encoder merge (spec §4.2).
func MergeMultiSource(bySource map[string][]*domain.RetrievedChunk) []*domain.RetrievedChunk {
	return lo.Flatten(lo.Values(bySource))
}
