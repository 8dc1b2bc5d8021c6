// Command ingest implements the training-data ingestion CLI from spec §6:
// walks a directory of markdown files, derives category/topic from filename
// heuristics, chunks each file with context injection, embeds the chunks,
// upserts them to the vector store, and registers a ParentDocument row per
// file. This is the "external ingestion pipeline" spec §3 says owns
// ParentDocument writes; the chat-serving core only reads its output.
//
// Grounded on agentoven-agentoven's cmd/server main for flat env-driven
// singleton construction, generalized to a one-shot batch CLI instead of a
// long-running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/balizero/agentcore/internal/chunker"
	"github.com/balizero/agentcore/internal/config"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/embedding"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/relstore"
	"github.com/balizero/agentcore/internal/vectorstore"
	"github.com/balizero/agentcore/pkg/sets"
)

func main() {
	var (
		dir       = flag.String("dir", "", "directory of markdown files to ingest (required)")
		corpusTag = flag.String("corpus-tag", "BALIZERO_KB", "corpus tag stamped into each chunk's context header")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "ingest: -dir is required")
		os.Exit(1)
	}

	if err := run(*dir, *corpusTag); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

// ingestCollections are the vector collections the ingestion CLI can write
// to, mirroring internal/retrieval's query-router table so a chunk written
// here is actually reachable by a later search.
var ingestCollections = func() sets.Set[string] {
	s := sets.NewHashSet[string](3)
	s.AddAll("immigration", "kbli", "legal_unified")
	return s
}()

// categoryToCollection maps a filename-derived category onto one of
// internal/retrieval's routed collections; unrecognized categories fall
// back to legal_unified, the catch-all route.
func categoryToCollection(category string) string {
	if ingestCollections.Contains(category) {
		return category
	}
	switch category {
	case "tax", "pajak":
		return "legal_unified"
	case "visa", "kitas", "kitap":
		return "immigration"
	default:
		return "legal_unified"
	}
}

// categoryTopicFromFilename implements spec §6's "extracts category/topic
// from filename heuristics": the first underscore-separated token is the
// category, the remainder (with underscores turned into spaces) is the
// topic. "immigration_kitas_investor.md" -> category "immigration", topic
// "kitas investor".
func categoryTopicFromFilename(path string) (category, topic string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.SplitN(base, "_", 2)
	category = strings.ToLower(parts[0])
	if len(parts) == 2 {
		topic = strings.ReplaceAll(parts[1], "_", " ")
	} else {
		topic = category
	}
	return category, topic
}

func run(dir, corpusTag string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(cfg.LogLevel)

	embedder, err := embedding.New(&embedding.Config{
		Provider:      cfg.EmbeddingProvider,
		PrimaryAPIKey: cfg.LLMAPIKeyPrimary,
	})
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}

	vec, err := vectorstore.New(&vectorstore.Config{URL: cfg.VectorStoreURL, APIKey: cfg.VectorStoreAPIKey})
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	for name := range ingestCollections.Iter() {
		if err := vec.EnsureCollection(ctx, name, embedding.Dimensions); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
	}

	rel, err := relstore.New(ctx, &relstore.Config{DSN: cfg.DatabaseURL, MaxSize: 5})
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer rel.Close()

	chunk, err := chunker.New(embedder, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to build chunker: %w", err)
	}

	files, err := markdownFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list markdown files in %s: %w", dir, err)
	}

	var filesFailed int
	for _, path := range files {
		if err := ingestFile(ctx, path, corpusTag, chunk, embedder, vec, rel); err != nil {
			filesFailed++
			log.Error("ingest: file failed", err, logging.F("path", path))
			continue
		}
		log.Info("ingest: file ingested", logging.F("path", path))
	}

	if filesFailed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", filesFailed, len(files))
	}
	return nil
}

func markdownFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ingestFile(
	ctx context.Context,
	path, corpusTag string,
	chunk *chunker.Chunker,
	embedder *embedding.Adapter,
	vec *vectorstore.Store,
	rel *relstore.Store,
) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	text := string(raw)
	if len(text) > domain.MaxParentDocChars {
		text = text[:domain.MaxParentDocChars]
	}

	category, topic := categoryTopicFromFilename(path)
	collection := categoryToCollection(category)
	documentID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parentID := uuid.NewString()

	chunks, err := chunk.Split(ctx, text, chunker.Metadata{
		CorpusTag: corpusTag,
		Category:  category,
		Topic:     topic,
	})
	if err != nil {
		return fmt.Errorf("failed to chunk file: %w", err)
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for _, c := range chunks {
		vector, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk: %w", err)
		}
		points = append(points, vectorstore.Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: map[string]any{
				"text":          c.Text,
				"source_doc_id": documentID,
				"parent_id":     parentID,
				"language":      c.Metadata.Language,
				"category":      c.Metadata.Category,
				"topic":         c.Metadata.Topic,
			},
		})
	}

	if len(points) > 0 {
		if err := vec.Upsert(ctx, collection, points); err != nil {
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
	}

	return registerParentDocument(ctx, rel, domain.ParentDocument{
		ID:         parentID,
		DocumentID: documentID,
		Title:      topic,
		DocType:    category,
		FullText:   text,
		CharCount:  len(text),
		ChunkCount: len(chunks),
		Metadata:   map[string]any{"collection": collection, "corpus_tag": corpusTag},
	})
}

// registerParentDocument implements the one parent-doc-write path spec §3
// grants the core itself: "training-data ingestion mode."
func registerParentDocument(ctx context.Context, rel *relstore.Store, doc domain.ParentDocument) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal parent document metadata: %w", err)
	}

	return rel.Exec(ctx, `
		INSERT INTO parent_documents (id, document_id, doc_type, title, full_text, char_count, chunk_count, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			doc_type = EXCLUDED.doc_type,
			title = EXCLUDED.title,
			full_text = EXCLUDED.full_text,
			char_count = EXCLUDED.char_count,
			chunk_count = EXCLUDED.chunk_count,
			metadata_json = EXCLUDED.metadata_json
	`, doc.ID, doc.DocumentID, doc.DocType, doc.Title, doc.FullText, doc.CharCount, doc.ChunkCount, metaJSON)
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}
