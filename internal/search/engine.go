// Package search ranks content items for a query by blending a lexical
// full-text baseline with an optional semantic boost. Lexical matching is
// the load-bearing path; embeddings only ever add to it.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpus/internal/knowledge"
)

// ErrEmptyQuery indicates a blank query string.
var ErrEmptyQuery = errors.New("query must not be empty")

// Searcher is the slice of the knowledge store the engine reads from and
// logs to.
type Searcher interface {
	SearchLexical(ctx context.Context, query string, scope knowledge.Scope, limit int32) ([]knowledge.LexicalResult, error)
	SearchSemantic(ctx context.Context, embedding []float32, scope knowledge.Scope, limit int32) ([]knowledge.SemanticResult, error)
	LogSearchQuery(ctx context.Context, q knowledge.SearchQuery) error
}

// Embedder produces the query vector. May be absent; search then runs
// lexical-only.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Query is one search request. An empty TenantID or UserID leaves that
// dimension unscoped.
type Query struct {
	Text       string
	TenantID   string
	UserID     string
	MaxResults int32 // 0 = engine default
}

// ScoredResult is one ranked hit. Score = LexicalRank +
// semanticWeight × Similarity; either component may be zero when the item
// matched only the other channel.
type ScoredResult struct {
	Item        knowledge.ContentItem
	Score       float32
	LexicalRank float32
	Similarity  float32
}

// Options tune the engine.
type Options struct {
	// SemanticWeight scales the similarity boost relative to the lexical
	// rank. Zero disables the boost even when embeddings exist.
	SemanticWeight float32

	// DefaultLimit applies when Query.MaxResults is zero; MaxLimit caps it.
	DefaultLimit int32
	MaxLimit     int32
}

// Engine executes searches. Every call, including failed embeds and
// zero-hit queries, appends one row to the query log.
type Engine struct {
	store    Searcher
	embedder Embedder
	opts     Options
	logger   *slog.Logger
}

func NewEngine(store Searcher, embedder Embedder, opts Options, logger *slog.Logger) *Engine {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, opts: opts, logger: logger}
}

// Search runs the blended query. Ranking happens over the full candidate
// union; truncation to MaxResults is the last step, so a strong
// semantic-only hit can displace a weak lexical one.
func (e *Engine) Search(ctx context.Context, q Query) ([]ScoredResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	if limit > e.opts.MaxLimit {
		limit = e.opts.MaxLimit
	}
	// Over-fetch per channel so blending has room to reorder.
	candidateLimit := limit * 2

	scope := knowledge.Scope{TenantID: q.TenantID, UserID: q.UserID}

	queryVec := e.embedQuery(ctx, text)

	lexical, err := e.store.SearchLexical(ctx, text, scope, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	var semantic []knowledge.SemanticResult
	if len(queryVec) > 0 && e.opts.SemanticWeight > 0 {
		semantic, err = e.store.SearchSemantic(ctx, queryVec, scope, candidateLimit)
		if err != nil {
			// Semantic is a boost, not a dependency.
			e.logger.Warn("semantic search failed, returning lexical results",
				"error", err)
			semantic = nil
		}
	}

	results := e.blend(lexical, semantic)
	if int32(len(results)) > limit {
		results = results[:limit]
	}

	e.logQuery(ctx, text, q, len(results))
	return results, nil
}

// embedQuery embeds the query text once per call. Failure degrades the
// search to lexical-only.
func (e *Engine) embedQuery(ctx context.Context, text string) []float32 {
	if e.embedder == nil || e.opts.SemanticWeight <= 0 {
		return nil
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("query embedding failed, lexical-only search", "error", err)
		return nil
	}
	return vec
}

// blend unions both candidate sets, sums the per-channel scores per item,
// and orders by score with recency as tie-break.
func (e *Engine) blend(lexical []knowledge.LexicalResult, semantic []knowledge.SemanticResult) []ScoredResult {
	merged := make(map[uuid.UUID]*ScoredResult, len(lexical)+len(semantic))
	order := make([]uuid.UUID, 0, len(lexical)+len(semantic))

	for _, r := range lexical {
		merged[r.Item.ID] = &ScoredResult{Item: r.Item, LexicalRank: r.Rank}
		order = append(order, r.Item.ID)
	}
	for _, r := range semantic {
		if m, ok := merged[r.Item.ID]; ok {
			m.Similarity = r.Similarity
			continue
		}
		merged[r.Item.ID] = &ScoredResult{Item: r.Item, Similarity: r.Similarity}
		order = append(order, r.Item.ID)
	}

	results := make([]ScoredResult, 0, len(order))
	for _, id := range order {
		m := merged[id]
		m.Score = m.LexicalRank + e.opts.SemanticWeight*m.Similarity
		results = append(results, *m)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.CreatedAt.After(results[j].Item.CreatedAt)
	})
	return results
}

// logQuery appends the analytics row. Log failure must never fail the
// search that produced it.
func (e *Engine) logQuery(ctx context.Context, text string, q Query, count int) {
	err := e.store.LogSearchQuery(ctx, knowledge.SearchQuery{
		QueryText:    text,
		UserID:       q.UserID,
		TenantID:     q.TenantID,
		ResultsCount: count,
	})
	if err != nil {
		e.logger.Warn("search query logging failed", "query", text, "error", err)
	}
}
