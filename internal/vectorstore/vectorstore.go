// Package vectorstore adapts the Qdrant client into the collection CRUD,
// filtered similarity search, and payload upsert contract from spec §2/§4.2,
// grounded on the teacher's ai/providers/vectorstores/qdrant Store
// (Config+Validate+New, CollectionExists/CreateCollection/Upsert/Query).
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// CallTimeout is the per-call timeout from spec §5.
const CallTimeout = 10 * time.Second

// Point is a single vector + payload to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Filter is a small key/value equality filter, sufficient for the
// is_promoted / user-level filters the retrieval service needs. All entries
// are ANDed together; there is no range or OR composition (a float64 value
// matches that exact number).
type Filter map[string]any

// SearchResult is one similarity-search hit.
type SearchResult struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Config configures the Store.
type Config struct {
	URL            string
	APIKey         string
	UseTLS         bool
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("vectorstore: config is nil")
	}
	if c.URL == "" {
		return errors.New("vectorstore: URL is required")
	}
	return nil
}

// Store is the vector store adapter.
type Store struct {
	client *qdrant.Client
}

// New builds a Store from Config.
func New(cfg *Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.URL,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client: %w", err)
	}

	return &Store{client: client}, nil
}

// EnsureCollection creates collection if it does not already exist, sized
// for the given vector dimension with cosine distance (spec §6).
func (s *Store) EnsureCollection(ctx context.Context, collection string, dims int) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to check collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to create collection %s: %w", collection, err)
	}
	return nil
}

// Upsert writes points to collection.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("vectorstore: failed to convert payload for point %s: %w", id, err)
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to upsert %d points into %s: %w", len(qpoints), collection, err)
	}
	return nil
}

// Delete removes points by id from collection, used by the memory
// subsystem's refute/removal path to keep the vector mirror in step with a
// deleted collective fact.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	qids := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qids = append(qids, qdrant.NewID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qids...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to delete %d points from %s: %w", len(ids), collection, err)
	}
	return nil
}

// Search runs a filtered similarity search against collection, returning up
// to topK results ordered by score descending. Never raises for an upstream
// failure in the sense the caller expects — internal/retrieval wraps this
// with the "never raises" contract from spec §4.2 by catching the error and
// returning empty results; Search itself still returns the Go error so the
// caller can log it.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          u64ptr(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if minScore > 0 {
		sc := float32(minScore)
		query.ScoreThreshold = &sc
	}
	if len(filter) > 0 {
		qf, err := toQdrantFilter(filter)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: invalid filter: %w", err)
		}
		query.Filter = qf
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search against %s failed: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, SearchResult{
			ID:      idString(p.Id),
			Score:   float64(p.Score),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	return results, nil
}

// Health probes the store with a lightweight collection-list call.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	_, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: health check failed: %w", err)
	}
	return nil
}

func toQdrantFilter(f Filter) (*qdrant.Filter, error) {
	conds := make([]*qdrant.Condition, 0, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case bool:
			conds = append(conds, qdrant.NewMatchBool(k, val))
		case string:
			conds = append(conds, qdrant.NewMatch(k, val))
		case int:
			conds = append(conds, qdrant.NewMatchInt(k, int64(val)))
		case float64:
			conds = append(conds, qdrant.NewRange(k, &qdrant.Range{
				Gte: &val,
				Lte: &val,
			}))
		default:
			return nil, fmt.Errorf("unsupported filter value type for key %q: %T", k, v)
		}
	}
	return &qdrant.Filter{Must: conds}, nil
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uid := id.GetUuid(); uid != "" {
		return uid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func u64ptr(v uint64) *uint64 { return &v }
