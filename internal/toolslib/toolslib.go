// Package toolslib implements the six tools from spec §4.6: vector_search,
// database_query, calculator, get_pricing, web_search, and vision_analyze.
//
// Grounded on internal/tool's Definition/Func/Registry contract (itself
// generalized from the teacher's ai/model/chat/tool package): every
// constructor here returns a tool.Func whose Handler never returns a Go
// error for an expected failure (unavailable backend, bad input) — it
// returns a string the model can react to, per spec §4.6's "never raises"
// contract. Call only propagates an error on context cancellation.
package toolslib

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/balizero/agentcore/internal/retrieval"
	"github.com/balizero/agentcore/internal/tool"
)

// VectorSearcher is the retrieval dependency vector_search calls.
type VectorSearcher interface {
	Search(ctx context.Context, query, userLevel string, limit int, applyFilters bool) (*retrieval.SearchResponse, error)
}

// NewVectorSearch builds the vector_search tool.
func NewVectorSearch(svc VectorSearcher) tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "vector_search",
			Description: "Search the knowledge base for relevant document chunks on a topic.",
			ParametersSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":      map[string]any{"type": "string"},
					"collection": map[string]any{"type": "string"},
					"top_k":      map[string]any{"type": "integer", "default": 5},
				},
				"required": []string{"query", "collection"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			var args struct {
				Query      string `json:"query"`
				Collection string `json:"collection"`
				TopK       int    `json:"top_k"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return fmt.Sprintf("Invalid arguments: %v", err), nil
			}
			if args.TopK <= 0 {
				args.TopK = 5
			}

			resp, err := svc.Search(ctx, args.Query, args.Collection, args.TopK, true)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return fmt.Sprintf("Search error: %v", err), nil
			}
			if resp == nil || len(resp.Results) == 0 {
				return "No relevant documents", nil
			}

			parts := make([]string, 0, len(resp.Results))
			for _, r := range resp.Results {
				parts = append(parts, r.Text)
			}
			return strings.Join(parts, "\n---\n"), nil
		},
	}
}

// RowScanner abstracts the pgx.Rows subset database_query needs to format
// results without importing pgx directly into this package.
type RowScanner interface {
	Next() bool
	Values() ([]any, error)
	Close()
	Err() error
}

// RelStore is the relational dependency database_query calls.
type RelStore interface {
	Query(ctx context.Context, sql string, args ...any) (RowScanner, error)
}

// QueryType is the closed parameter set database_query accepts.
type QueryType string

const (
	QueryFullText   QueryType = "full_text"
	QueryExactMatch QueryType = "exact_match"
	QueryFuzzy      QueryType = "fuzzy"
)

const databaseQueryRowLimit = 10

// NewDatabaseQuery builds the database_query tool. table/searchColumn name
// the parent_documents title column, the tool's only documented search
// surface per spec §6's persisted-state layout.
func NewDatabaseQuery(rel RelStore, table, searchColumn string) tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "database_query",
			Description: "Search stored business documents by title using full-text, exact, or fuzzy matching.",
			ParametersSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search_term": map[string]any{"type": "string"},
					"query_type":  map[string]any{"type": "string", "enum": []string{"full_text", "exact_match", "fuzzy"}},
				},
				"required": []string{"search_term", "query_type"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			var args struct {
				SearchTerm string `json:"search_term"`
				QueryType  string `json:"query_type"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return fmt.Sprintf("Invalid arguments: %v", err), nil
			}

			sqlStr, param := buildDatabaseQuerySQL(table, searchColumn, QueryType(args.QueryType), args.SearchTerm)

			rows, err := rel.Query(ctx, sqlStr, param)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "Database not available", nil
			}
			defer rows.Close()

			var lines []string
			for rows.Next() && len(lines) < databaseQueryRowLimit {
				vals, err := rows.Values()
				if err != nil {
					return "Database not available", nil
				}
				lines = append(lines, formatRow(vals))
			}
			if err := rows.Err(); err != nil {
				return "Database not available", nil
			}
			if len(lines) == 0 {
				return "No matching records", nil
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}

func buildDatabaseQuerySQL(table, column string, qt QueryType, term string) (sqlStr string, param string) {
	switch qt {
	case QueryExactMatch:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, column), term
	case QueryFuzzy:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s ILIKE $1", table, column), "%" + term + "%"
	default: // full_text
		return fmt.Sprintf("SELECT * FROM %s WHERE to_tsvector(%s) @@ plainto_tsquery($1)", table, column), term
	}
}

func formatRow(vals []any) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, " | ")
}

// NewCalculator builds the calculator tool. Expressions are evaluated by
// expr-lang/expr with an empty environment — the "safe expression parser"
// spec §4.6 requires: there is no exec and no caller-supplied identifier or
// function, though expr's own pure built-ins (such as abs or max) stay
// callable. Only a numeric result is returned; any other result type is
// reported as an invalid expression.
func NewCalculator() tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "calculator",
			Description: "Evaluate an arithmetic expression (+ - * / ^ and parentheses).",
			ParametersSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"expression": map[string]any{"type": "string"}},
				"required":   []string{"expression"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			var args struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "Invalid expression", nil
			}

			normalized := strings.ReplaceAll(args.Expression, "^", "**")
			result, err := expr.Eval(normalized, nil)
			if err != nil {
				return "Invalid expression", nil
			}
			switch v := result.(type) {
			case int, int64, float64:
				return fmt.Sprintf("%v", v), nil
			default:
				return "Invalid expression", nil
			}
		},
	}
}

// PricingProvider is the named external pricing service collaborator
// (out of scope per spec §5's Non-goals; reached by interface only).
type PricingProvider interface {
	GetPricing(ctx context.Context, serviceType string) (string, error)
}

// NewGetPricing builds the get_pricing tool.
func NewGetPricing(provider PricingProvider) tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "get_pricing",
			Description: "Look up the current price table for a Bali Zero service.",
			ParametersSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"service_type": map[string]any{"type": "string"}},
				"required":   []string{"service_type"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			var args struct {
				ServiceType string `json:"service_type"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "Pricing unavailable", nil
			}
			if provider == nil {
				return "Pricing unavailable", nil
			}

			text, err := provider.GetPricing(ctx, args.ServiceType)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "Pricing unavailable", nil
			}
			return text, nil
		},
	}
}

// WebSearchProvider is the named external web-search collaborator.
type WebSearchProvider interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// NewWebSearch builds the web_search tool. A nil provider (no network
// configured) returns the fallback instructing the model to use
// vector_search instead, per spec §4.6.
func NewWebSearch(provider WebSearchProvider) tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "web_search",
			Description: "Search the public web for current information not found in the knowledge base.",
			ParametersSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			if provider == nil {
				return "Web search is unavailable; use vector_search against the knowledge base instead.", nil
			}
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "Web search is unavailable; use vector_search against the knowledge base instead.", nil
			}

			snippets, err := provider.Search(ctx, args.Query)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "Web search is unavailable; use vector_search against the knowledge base instead.", nil
			}
			if len(snippets) == 0 {
				return "Web search is unavailable; use vector_search against the knowledge base instead.", nil
			}
			return strings.Join(snippets, "\n---\n"), nil
		},
	}
}

// VisionProvider is the named external vision-capable model collaborator.
type VisionProvider interface {
	Analyze(ctx context.Context, docID, question string) (string, error)
}

// NewVisionAnalyze builds the vision_analyze tool.
func NewVisionAnalyze(provider VisionProvider) tool.Tool {
	return tool.Func{
		Def: tool.Definition{
			Name:        "vision_analyze",
			Description: "Ask a vision-capable model a question about an uploaded document image.",
			ParametersSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"doc_id":   map[string]any{"type": "string"},
					"question": map[string]any{"type": "string"},
				},
				"required": []string{"doc_id", "question"},
			},
		},
		Handler: func(ctx tool.Context, argsJSON string) (string, error) {
			if provider == nil {
				return "Vision unavailable", nil
			}
			var args struct {
				DocID    string `json:"doc_id"`
				Question string `json:"question"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "Vision unavailable", nil
			}

			answer, err := provider.Analyze(ctx, args.DocID, args.Question)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "Vision unavailable", nil
			}
			return answer, nil
		},
	}
}

// RegisterAll registers every configured tool with reg. Providers left nil
// still register their tool; the handler degrades to the documented
// unavailable-string response at call time.
func RegisterAll(reg *tool.Registry, vec VectorSearcher, rel RelStore, table, searchColumn string, pricing PricingProvider, web WebSearchProvider, vision VisionProvider) error {
	tools := []tool.Tool{
		NewVectorSearch(vec),
		NewDatabaseQuery(rel, table, searchColumn),
		NewCalculator(),
		NewGetPricing(pricing),
		NewWebSearch(web),
		NewVisionAnalyze(vision),
	}
	return reg.Register(tools...)
}
