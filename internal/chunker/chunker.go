// Package chunker implements the semantic chunker with context injection
// from spec §4.1: section splitting, keyword-vote language detection,
// greedy centroid-similarity grouping up to a token budget, fixed-batch
// fallback, and a deterministic context header per chunk.
//
// Grounded on the teacher's ai/core/transformer/splitter (paragraph/token
// splitting shape) and ai/rag/document/refiners (post-processing style),
// generalized to the spec's section-then-paragraph algorithm and header
// injection.
package chunker

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultMaxTokens       = 1000
	defaultSimilarityDrop  = 0.7
	minChunkChars          = 50
	maxChunkChars          = 10_000
	fallbackParagraphBatch = 3
)

// Embedder produces a vector for a short piece of text, used to compute the
// running chunk centroid for the greedy similarity grouping step.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Metadata describes the source a chunk is taken from; it is encoded into
// the context header every chunk receives.
type Metadata struct {
	CorpusTag string // e.g. "BALIZERO_KB"
	Category  string
	VisaType  string // optional; omitted from header when empty
	Topic     string
	Language  string // overrides detection when non-empty
}

// Chunk is one output chunk: context-header-prefixed text plus the metadata
// that produced the header.
type Chunk struct {
	Text     string // includes the "[CONTEXT: ...]\n\n" header
	Body     string // text without the header, for round-trip checks
	Metadata Metadata
}

var sectionMarker = regexp.MustCompile(`(?m)^(##.*|(?:-{3,}|\*{3,}|_{3,}))\s*$`)

// languageKeywords is the keyword-vote table for IT/EN/ID/JV/BAN detection.
// Not exhaustive — a small, high-signal marker set per language, matching
// the spec's "keyword-vote heuristic" description.
var languageKeywords = map[string][]string{
	"it": {"il", "la", "di", "che", "per", "con", "visto", "permesso"},
	"en": {"the", "and", "of", "for", "with", "visa", "permit"},
	"id": {"yang", "dan", "untuk", "dengan", "visa", "izin", "adalah"},
	"jv": {"lan", "kanggo", "iki", "iku", "ana"},
	"ban": {"lan", "niki", "sane", "ring", "punika"},
}

const languageVoteThreshold = 2

// Chunker splits long text into coherent, context-labeled chunks.
type Chunker struct {
	embedder           Embedder
	maxTokens          int
	similarityDrop     float64
	tokenizer          *tiktoken.Tiktoken
}

// New builds a Chunker. maxTokens <= 0 defaults to 1000; similarityDrop <= 0
// defaults to 0.7, matching spec defaults.
func New(embedder Embedder, maxTokens int, similarityDrop float64) (*Chunker, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if similarityDrop <= 0 {
		similarityDrop = defaultSimilarityDrop
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("chunker: failed to load tokenizer: %w", err)
	}
	return &Chunker{
		embedder:       embedder,
		maxTokens:      maxTokens,
		similarityDrop: similarityDrop,
		tokenizer:      enc,
	}, nil
}

// Split runs the full algorithm described in spec §4.1.
func (c *Chunker) Split(ctx context.Context, text string, meta Metadata) ([]Chunk, error) {
	sections := splitSections(text)

	var chunks []Chunk
	for _, section := range sections {
		sectionMeta := meta
		if sectionMeta.Language == "" {
			sectionMeta.Language = detectLanguage(section)
		}

		header := contextHeader(sectionMeta)
		var headerTokens int
		if c.tokenizer != nil {
			headerTokens = len(c.tokenizer.Encode(header, nil, nil))
		}

		paragraphs := splitParagraphs(section)
		grouped, err := c.groupSemantic(ctx, paragraphs, headerTokens)
		if err != nil {
			return nil, fmt.Errorf("chunker: semantic grouping failed: %w", err)
		}
		if len(grouped) == 0 {
			grouped = fallbackBatches(paragraphs, fallbackParagraphBatch)
		}

		for _, body := range grouped {
			body = strings.TrimSpace(body)
			if len(body) < minChunkChars {
				continue
			}
			body = truncateAtSentence(body, maxChunkChars)

			chunks = append(chunks, Chunk{
				Text:     header + body,
				Body:     body,
				Metadata: sectionMeta,
			})
		}
	}

	return chunks, nil
}

// contextHeader builds the deterministic per-chunk header from spec §4.1:
// "[CONTEXT: <CORPUS_TAG> - CATEGORY <CAT> - [VISA <TYPE> -] TOPIC <TOPIC> - LANG <LANG>]\n\n"
func contextHeader(m Metadata) string {
	var b strings.Builder
	b.WriteString("[CONTEXT: ")
	b.WriteString(m.CorpusTag)
	b.WriteString(" - CATEGORY ")
	b.WriteString(m.Category)
	if m.VisaType != "" {
		b.WriteString(" - VISA ")
		b.WriteString(m.VisaType)
	}
	b.WriteString(" - TOPIC ")
	b.WriteString(m.Topic)
	b.WriteString(" - LANG ")
	b.WriteString(m.Language)
	b.WriteString("]\n\n")
	return b.String()
}

func splitSections(text string) []string {
	idxs := sectionMarker.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}

	var sections []string
	start := 0
	for _, idx := range idxs {
		if idx[0] > start {
			sections = append(sections, text[start:idx[0]])
		}
		start = idx[0]
	}
	sections = append(sections, text[start:])

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func splitParagraphs(section string) []string {
	raw := strings.Split(section, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func detectLanguage(section string) string {
	lower := strings.ToLower(section)
	words := strings.Fields(lower)
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,;:!?()\"'")] = struct{}{}
	}

	best := ""
	bestCount := 0
	for _, lang := range []string{"it", "en", "id", "jv", "ban"} {
		count := 0
		for _, kw := range languageKeywords[lang] {
			if _, ok := wordSet[kw]; ok {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = lang
		}
	}
	if bestCount < languageVoteThreshold {
		return "id" // default to Indonesian per spec
	}
	return best
}

// groupSemantic greedily groups paragraphs into the running chunk while its
// token budget allows and while the paragraph's embedding stays within
// similarityDrop of the running centroid. headerTokens reserves room for the
// context header Split prepends to the group once grouping is finalized, so
// a full group plus its header never exceeds maxTokens. Returns nil (not an
// error) if the embedder is unavailable or grouping yields nothing, so Split
// can fall back to fixed-size batching.
func (c *Chunker) groupSemantic(ctx context.Context, paragraphs []string, headerTokens int) ([]string, error) {
	if c.embedder == nil || len(paragraphs) == 0 {
		return nil, nil
	}
	budget := c.maxTokens - headerTokens

	var groups []string
	var currentParas []string
	var currentTokens int
	var centroid []float32
	var centroidCount int

	flush := func() {
		if len(currentParas) > 0 {
			groups = append(groups, strings.Join(currentParas, "\n\n"))
		}
		currentParas = nil
		currentTokens = 0
		centroid = nil
		centroidCount = 0
	}

	for _, p := range paragraphs {
		tokens := len(c.tokenizer.Encode(p, nil, nil))

		vec, err := c.embedder.Embed(ctx, p)
		if err != nil {
			// Embedding failure degrades to ending the current group and
			// starting a fresh one from this paragraph, rather than failing
			// the whole chunking run.
			flush()
			currentParas = []string{p}
			currentTokens = tokens
			continue
		}

		if len(currentParas) > 0 {
			sim := cosineSimilarity(centroid, vec)
			if currentTokens+tokens > budget || sim < c.similarityDrop {
				flush()
			}
		}

		currentParas = append(currentParas, p)
		currentTokens += tokens
		centroid = updateCentroid(centroid, centroidCount, vec)
		centroidCount++
	}
	flush()

	return groups, nil
}

func updateCentroid(centroid []float32, count int, vec []float32) []float32 {
	if centroid == nil {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	n := float32(count + 1)
	for i := range centroid {
		centroid[i] = (centroid[i]*float32(count) + vec[i]) / n
	}
	return centroid
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func fallbackBatches(paragraphs []string, batchSize int) []string {
	if len(paragraphs) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(paragraphs); i += batchSize {
		end := i + batchSize
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		out = append(out, strings.Join(paragraphs[i:end], "\n\n"))
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?][\s"')\]]*`)

func truncateAtSentence(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	truncated := text[:maxChars]
	matches := sentenceEnd.FindAllStringIndex(truncated, -1)
	if len(matches) == 0 {
		return truncated
	}
	last := matches[len(matches)-1]
	return strings.TrimRight(truncated[:last[1]], " \t\r\n")
}
