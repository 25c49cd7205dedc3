package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpus/internal/knowledge"
)

type fakeStore struct {
	lexical     []knowledge.LexicalResult
	lexicalErr  error
	semantic    []knowledge.SemanticResult
	semanticErr error

	logged []knowledge.SearchQuery
	logErr error
}

func (f *fakeStore) SearchLexical(context.Context, string, knowledge.Scope, int32) ([]knowledge.LexicalResult, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeStore) SearchSemantic(context.Context, []float32, knowledge.Scope, int32) ([]knowledge.SemanticResult, error) {
	return f.semantic, f.semanticErr
}

func (f *fakeStore) LogSearchQuery(_ context.Context, q knowledge.SearchQuery) error {
	f.logged = append(f.logged, q)
	return f.logErr
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func item(title string, age time.Duration) knowledge.ContentItem {
	return knowledge.ContentItem{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestSearchBlendsLexicalAndSemantic(t *testing.T) {
	shared := item("both channels", time.Hour)
	lexOnly := item("lexical only", time.Hour)
	semOnly := item("semantic only", time.Hour)

	store := &fakeStore{
		lexical: []knowledge.LexicalResult{
			{Item: lexOnly, Rank: 0.5},
			{Item: shared, Rank: 0.4},
		},
		semantic: []knowledge.SemanticResult{
			{Item: shared, Similarity: 0.9},
			{Item: semOnly, Similarity: 0.8},
		},
	}
	e := NewEngine(store, &fakeEmbedder{vec: []float32{1}}, Options{SemanticWeight: 0.5}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() returned %d results, want union of 3", len(results))
	}

	// shared: 0.4 + 0.5*0.9 = 0.85; lexOnly: 0.5; semOnly: 0.5*0.8 = 0.4
	if results[0].Item.ID != shared.ID {
		t.Errorf("results[0] = %q, want boosted shared item", results[0].Item.Title)
	}
	if results[1].Item.ID != lexOnly.ID {
		t.Errorf("results[1] = %q, want lexical-only item", results[1].Item.Title)
	}
	if results[2].Item.ID != semOnly.ID {
		t.Errorf("results[2] = %q, want semantic-only item", results[2].Item.Title)
	}
	if got := results[0].Score; got < 0.84 || got > 0.86 {
		t.Errorf("results[0].Score = %v, want 0.85", got)
	}
}

func TestSearchEmbedFailureDegradesToLexical(t *testing.T) {
	lex := item("still found", time.Hour)
	store := &fakeStore{
		lexical:  []knowledge.LexicalResult{{Item: lex, Rank: 0.3}},
		semantic: []knowledge.SemanticResult{{Item: item("never fetched", 0), Similarity: 1}},
	}
	emb := &fakeEmbedder{err: errors.New("embedder down")}
	e := NewEngine(store, emb, Options{SemanticWeight: 0.5}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Item.ID != lex.ID {
		t.Fatalf("Search() = %v, want lexical result only", results)
	}
	if emb.calls != 1 {
		t.Errorf("Embed called %d times, want exactly once per search", emb.calls)
	}
}

func TestSearchSemanticStoreFailureDegrades(t *testing.T) {
	lex := item("survives", time.Hour)
	store := &fakeStore{
		lexical:     []knowledge.LexicalResult{{Item: lex, Rank: 0.3}},
		semanticErr: errors.New("index offline"),
	}
	e := NewEngine(store, &fakeEmbedder{vec: []float32{1}}, Options{SemanticWeight: 0.5}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want lexical baseline", len(results))
	}
}

func TestSearchLexicalFailureIsFatal(t *testing.T) {
	store := &fakeStore{lexicalErr: errors.New("database down")}
	e := NewEngine(store, nil, Options{}, nil)

	if _, err := e.Search(context.Background(), Query{Text: "query"}); err == nil {
		t.Fatal("Search() error = nil, want lexical failure surfaced")
	}
}

func TestSearchRecencyTieBreak(t *testing.T) {
	older := item("older", 48*time.Hour)
	newer := item("newer", time.Hour)
	store := &fakeStore{
		lexical: []knowledge.LexicalResult{
			{Item: older, Rank: 0.5},
			{Item: newer, Rank: 0.5},
		},
	}
	e := NewEngine(store, nil, Options{}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Item.ID != newer.ID {
		t.Errorf("results[0] = %q, want newer item on equal score", results[0].Item.Title)
	}
}

func TestSearchTruncatesAfterRanking(t *testing.T) {
	weakLex := item("weak lexical", time.Hour)
	strongSem := item("strong semantic", time.Hour)
	store := &fakeStore{
		lexical:  []knowledge.LexicalResult{{Item: weakLex, Rank: 0.1}},
		semantic: []knowledge.SemanticResult{{Item: strongSem, Similarity: 0.95}},
	}
	e := NewEngine(store, &fakeEmbedder{vec: []float32{1}}, Options{SemanticWeight: 1}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query", MaxResults: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want truncation to 1", len(results))
	}
	if results[0].Item.ID != strongSem.ID {
		t.Errorf("results[0] = %q, want semantic hit to displace weak lexical one", results[0].Item.Title)
	}
}

func TestSearchAlwaysLogsQuery(t *testing.T) {
	store := &fakeStore{} // zero hits
	e := NewEngine(store, nil, Options{}, nil)

	if _, err := e.Search(context.Background(), Query{Text: "nothing matches", UserID: "u-1", TenantID: "t-1"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(store.logged) != 1 {
		t.Fatalf("logged %d queries, want 1 even with zero results", len(store.logged))
	}
	q := store.logged[0]
	if q.QueryText != "nothing matches" || q.ResultsCount != 0 || q.UserID != "u-1" || q.TenantID != "t-1" {
		t.Errorf("logged query = %+v", q)
	}
}

func TestSearchLogFailureDoesNotFailSearch(t *testing.T) {
	lex := item("found", time.Hour)
	store := &fakeStore{
		lexical: []knowledge.LexicalResult{{Item: lex, Rank: 0.2}},
		logErr:  errors.New("analytics table gone"),
	}
	e := NewEngine(store, nil, Options{}, nil)

	results, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v, want log failure swallowed", err)
	}
	if len(results) != 1 {
		t.Errorf("Search() returned %d results", len(results))
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, nil, Options{}, nil)

	if _, err := e.Search(context.Background(), Query{Text: "   "}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Search() error = %v, want ErrEmptyQuery", err)
	}
	if len(store.logged) != 0 {
		t.Error("rejected query should not be logged")
	}
}

func TestSearchLimitDefaultsAndCaps(t *testing.T) {
	var results []knowledge.LexicalResult
	for i := 0; i < 30; i++ {
		results = append(results, knowledge.LexicalResult{Item: item("doc", time.Duration(i)*time.Minute), Rank: 0.5})
	}
	store := &fakeStore{lexical: results}
	e := NewEngine(store, nil, Options{DefaultLimit: 10, MaxLimit: 20}, nil)

	got, err := e.Search(context.Background(), Query{Text: "query"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("default limit: got %d results, want 10", len(got))
	}

	got, err = e.Search(context.Background(), Query{Text: "query", MaxResults: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("capped limit: got %d results, want 20", len(got))
	}
}
