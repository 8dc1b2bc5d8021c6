// Package retrieval implements the retrieval service from spec §4.2:
// collection routing, filtered similarity search, rerank-and-trim, parent
// document expansion, and cache-namespace separation between the canonical
// and deprecated read paths.
//
// Grounded on the teacher's ai/rag/pipeline.go PipelineConfig shape
// (transformers → expander → retrievers(parallel) → refiners → augmenter),
// generalized into the two spec operations; the parallel fan-out in
// SearchMultiSource is built on flow.Batch, the same errgroup-backed
// concurrent-segment runner the teacher uses for its own parallel stage.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/balizero/agentcore/flow"
	"github.com/balizero/agentcore/internal/cache"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/rerank"
	"github.com/balizero/agentcore/internal/vectorstore"
)

// Embedder produces the query vector for a search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the subset of vectorstore.Store the service depends on.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, topK int, filter vectorstore.Filter, minScore float64) ([]vectorstore.SearchResult, error)
}

// ParentExpander loads the full parent document for a chunk's ParentID; nil
// disables expansion.
type ParentExpander interface {
	GetParent(ctx context.Context, parentID string) (*domain.ParentDocument, error)
}

// collectionRoute is one entry in the static query-router table.
type collectionRoute struct {
	name     string
	keywords []string
}

// defaultRoutes is the static keyword table from spec §4.2's Query Router
// description; callers can override via WithRoutes for test fixtures.
var defaultRoutes = []collectionRoute{
	{name: "immigration", keywords: []string{"visa", "kitas", "kitap", "imigrasi", "paspor", "permit"}},
	{name: "kbli", keywords: []string{"kbli", "klasifikasi", "usaha", "nib", "oss"}},
	{name: "legal_unified", keywords: []string{"pt pma", "akta", "notaris", "kontrak", "hukum", "legal"}},
	{name: "collective_memories", keywords: []string{}}, // matched explicitly, never by keyword
}

// Result is one search hit as returned to the orchestrator/tool layer.
type Result struct {
	Text      string
	Score     float64
	Source    string
	ParentID  string
	ParentDoc *domain.ParentDocument // non-nil only when expansion was requested and succeeded
}

// SearchResponse is search's return value.
type SearchResponse struct {
	Results        []Result
	CollectionUsed string
}

const (
	cacheNamespaceCanonical  = "rag_search:"
	cacheNamespaceDeprecated = "rag_search_deprecated:"
)

// Service implements the retrieval operations.
type Service struct {
	embedder Embedder
	store    VectorSearcher
	reranker *rerank.Reranker
	parents  ParentExpander
	cache    *cache.Cache
	routes   []collectionRoute
}

// New builds a Service. parents may be nil to disable parent-document
// expansion.
func New(embedder Embedder, store VectorSearcher, reranker *rerank.Reranker, parents ParentExpander, c *cache.Cache) *Service {
	return &Service{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		parents:  parents,
		cache:    c,
		routes:   defaultRoutes,
	}
}

// WithRoutes overrides the static collection routing table.
func (s *Service) WithRoutes(routes []collectionRoute) *Service {
	s.routes = routes
	return s
}

// Search picks a collection via the query router, embeds query, issues a
// filtered vector search, reranks top-(2*limit) down to top-limit, and
// optionally expands each result to its parent document. Never returns an
// error for a routing/upstream failure — it degrades to an empty result set,
// per spec §4.2's "never raises" guarantee; it only returns an error for a
// canceled context.
func (s *Service) Search(ctx context.Context, query string, userLevel string, limit int, applyFilters bool) (*SearchResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	collection := routeCollection(query, s.routes)
	if collection == "" {
		return &SearchResponse{Results: nil, CollectionUsed: ""}, nil
	}

	cacheKey := cacheNamespaceCanonical + collection + ":" + queryDigest(query, userLevel, limit, applyFilters)
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if resp, ok := v.(*SearchResponse); ok {
				return resp, nil
			}
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return &SearchResponse{Results: nil, CollectionUsed: ""}, nil
	}

	var filter vectorstore.Filter
	if applyFilters {
		filter = filterFor(collection, userLevel)
	}

	fetchK := limit * 2
	if fetchK < limit {
		fetchK = limit
	}

	hits, err := s.store.Search(ctx, collection, vec, fetchK, filter, 0)
	if err != nil {
		return &SearchResponse{Results: nil, CollectionUsed: ""}, nil
	}

	chunks := toChunks(hits, collection)
	reranked := chunks
	if s.reranker != nil && len(chunks) > 0 {
		r, err := s.reranker.Rerank(ctx, query, chunks, limit)
		if err == nil {
			reranked = r
		}
	}
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}

	results := s.toResults(ctx, reranked)
	resp := &SearchResponse{Results: results, CollectionUsed: collection}

	if s.cache != nil {
		s.cache.Set(cacheKey, resp)
	}
	return resp, nil
}

// SearchMultiSource fans out Search-equivalent queries across collections in
// parallel (flow.Batch, mirroring the teacher's errgroup-backed parallel
// retriever stage), then cross-encoder merge-reranks into one unified top-k.
// With no reranker configured the hits are neither merge-ranked nor
// trimmed: every collection's raw hits (up to 2*limit each) are returned.
func (s *Service) SearchMultiSource(ctx context.Context, query string, collections []string, limit int) (map[string][]Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(collections) == 0 {
		return map[string][]Result{}, nil
	}

	cacheKey := cacheNamespaceCanonical + "multi:" + strings.Join(collections, ",") + ":" + queryDigest(query, "", limit, true)
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if m, ok := v.(map[string][]Result); ok {
				return m, nil
			}
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return map[string][]Result{}, nil
	}

	batch := (&flow.Batch[[]string, map[string][]*domain.RetrievedChunk, string, bySourceChunks]{}).
		WithConcurrencyLimit(len(collections)).
		WithContinueOnError().
		WithSegmenter(func(_ context.Context, in []string) ([]string, error) { return in, nil }).
		WithProcessor(flow.Processor[string, bySourceChunks](func(pctx context.Context, collection string) (bySourceChunks, error) {
			hits, err := s.store.Search(pctx, collection, vec, limit*2, nil, 0)
			if err != nil {
				return bySourceChunks{source: collection}, nil
			}
			return bySourceChunks{source: collection, chunks: toChunks(hits, collection)}, nil
		})).
		WithAggregator(func(_ context.Context, segs []bySourceChunks) (map[string][]*domain.RetrievedChunk, error) {
			out := make(map[string][]*domain.RetrievedChunk, len(segs))
			for _, seg := range segs {
				out[seg.source] = seg.chunks
			}
			return out, nil
		})

	bySource, err := batch.Run(ctx, collections)
	if err != nil {
		return map[string][]Result{}, nil
	}

	merged := rerank.MergeMultiSource(bySource)
	if s.reranker != nil && len(merged) > 0 {
		r, err := s.reranker.Rerank(ctx, query, merged, limit)
		if err == nil {
			merged = r
		}
	}

	out := make(map[string][]Result, len(bySource))
	for source := range bySource {
		out[source] = nil
	}
	for _, c := range merged {
		out[c.CollectionName] = append(out[c.CollectionName], Result{
			Text:     c.Text,
			Score:    c.RerankedScore,
			Source:   c.CollectionName,
			ParentID: c.ParentID,
		})
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, out)
	}
	return out, nil
}

type bySourceChunks struct {
	source string
	chunks []*domain.RetrievedChunk
}

func (s *Service) toResults(ctx context.Context, chunks []*domain.RetrievedChunk) []Result {
	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		r := Result{
			Text:     c.Text,
			Score:    c.RerankedScore,
			Source:   c.CollectionName,
			ParentID: c.ParentID,
		}
		if s.parents != nil && c.ParentID != "" {
			if doc, err := s.parents.GetParent(ctx, c.ParentID); err == nil {
				r.ParentDoc = doc
			}
		}
		results = append(results, r)
	}
	return results
}

func toChunks(hits []vectorstore.SearchResult, collection string) []*domain.RetrievedChunk {
	chunks := make([]*domain.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		text, _ := h.Payload["text"].(string)
		parentID, _ := h.Payload["parent_id"].(string)
		lang, _ := h.Payload["language"].(string)
		chunks = append(chunks, &domain.RetrievedChunk{
			Text:           text,
			SourceDocID:    h.ID,
			CollectionName: collection,
			Language:       lang,
			ParentID:       parentID,
			Score:          h.Score,
			RerankedScore:  h.Score,
		})
	}
	return chunks
}

func routeCollection(query string, routes []collectionRoute) string {
	lower := strings.ToLower(query)
	for _, r := range routes {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.name
			}
		}
	}
	return ""
}

func filterFor(collection, userLevel string) vectorstore.Filter {
	if collection == "collective_memories" {
		return vectorstore.Filter{"is_promoted": true}
	}
	if userLevel != "" {
		return vectorstore.Filter{"user_level": userLevel}
	}
	return nil
}

// queryDigest builds a stable cache-key suffix from the argument set,
// matching spec §5's "stable hash of the full argument set" key-builder
// requirement.
func queryDigest(query, userLevel string, limit int, applyFilters bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%t", strings.ToLower(strings.TrimSpace(query)), userLevel, limit, applyFilters)
	return hex.EncodeToString(h.Sum(nil))
}
