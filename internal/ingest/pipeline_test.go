package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpus/internal/analysis"
	"github.com/corvid-labs/corpus/internal/extract"
	"github.com/corvid-labs/corpus/internal/knowledge"
)

type fakeSaver struct {
	got *knowledge.SaveRequest
	err error
}

func (f *fakeSaver) SaveItem(_ context.Context, req knowledge.SaveRequest) (*knowledge.ContentItem, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	item := req.Item
	item.ID = uuid.New()
	item.HasEmbedding = len(req.Embedding) > 0
	return &item, nil
}

type fakeAnalyzer struct {
	result *analysis.Result
	err    error
}

func (f *fakeAnalyzer) Analyze(context.Context, string, map[string]string) (*analysis.Result, error) {
	return f.result, f.err
}

// blockingAnalyzer waits for the context deadline and reports its error.
type blockingAnalyzer struct{}

func (blockingAnalyzer) Analyze(ctx context.Context, _ string, _ map[string]string) (*analysis.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func newTestPipeline(saver Saver, analyzer analysis.Analyzer, embedder Embedder, opts Options) *Pipeline {
	return NewPipeline(extract.NewRegistry(nil), saver, analyzer, embedder, opts, nil)
}

func TestIngestFullEnrichment(t *testing.T) {
	saver := &fakeSaver{}
	analyzer := &fakeAnalyzer{result: &analysis.Result{
		Summary: "Acme raised a Series A.",
		Entities: []analysis.Entity{
			{Text: "Acme Corp", Type: "organization", Confidence: 0.9},
		},
		Topics:    []string{"funding"},
		Sentiment: &analysis.Sentiment{Label: "positive", Score: 0.7, Confidence: 0.8},
	}}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	p := newTestPipeline(saver, analyzer, embedder, Options{TagFromTopics: true})

	got, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("Acme Corp raised $10M in Series A funding."),
		Filename:    "news.txt",
		ContentType: "text/plain",
		Source:      "mailbox/news.txt",
		Tags:        []string{"inbox"},
		TenantID:    "t-1",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if got.Summary != "Acme raised a Series A." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.Metadata[metaAnalysisStatus] != statusComplete {
		t.Errorf("analysis_status = %q", got.Metadata[metaAnalysisStatus])
	}
	if got.Metadata["sentiment"] != "positive" {
		t.Errorf("sentiment metadata = %q", got.Metadata["sentiment"])
	}
	if !got.HasEmbedding {
		t.Error("HasEmbedding = false")
	}

	req := saver.got
	if len(req.Concepts) != 2 {
		t.Fatalf("Concepts = %v, want entity + topic", req.Concepts)
	}
	if req.Concepts[1].Type != "topic" || req.Concepts[1].Name != "funding" {
		t.Errorf("topic concept = %+v", req.Concepts[1])
	}
	if len(req.TagNames) != 2 {
		t.Errorf("TagNames = %v, want caller tag plus topic", req.TagNames)
	}
	if req.Item.Title != "news.txt" {
		t.Errorf("Title = %q, want filename fallback", req.Item.Title)
	}
}

func TestIngestEmptyContentPersistsNothing(t *testing.T) {
	saver := &fakeSaver{}
	p := newTestPipeline(saver, nil, nil, Options{})

	_, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("   \n\t  "),
		Filename:    "blank.txt",
		ContentType: "text/plain",
	})
	if !errors.Is(err, extract.ErrEmptyContent) {
		t.Fatalf("Ingest() error = %v, want ErrEmptyContent", err)
	}
	if saver.got != nil {
		t.Error("SaveItem was called for empty content")
	}
}

func TestIngestAnalysisFailureDegrades(t *testing.T) {
	saver := &fakeSaver{}
	analyzer := &fakeAnalyzer{err: errors.New("agent unreachable")}
	p := newTestPipeline(saver, analyzer, nil, Options{})

	got, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("still worth indexing"),
		Filename:    "doc.txt",
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v, want analysis failure swallowed", err)
	}
	if got.Metadata[metaAnalysisStatus] != statusFailed {
		t.Errorf("analysis_status = %q, want %q", got.Metadata[metaAnalysisStatus], statusFailed)
	}
	if got.Metadata[metaAnalysisError] == "" {
		t.Error("analysis_error not recorded")
	}
	if got.Summary != "" {
		t.Errorf("Summary = %q, want empty without analysis", got.Summary)
	}
	if len(saver.got.Concepts) != 0 {
		t.Errorf("Concepts = %v, want none", saver.got.Concepts)
	}
}

func TestIngestAnalysisTimeoutMarksDegraded(t *testing.T) {
	saver := &fakeSaver{}
	p := newTestPipeline(saver, blockingAnalyzer{}, nil, Options{AnalysisTimeout: 10 * time.Millisecond})

	got, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("slow agent should not block indexing"),
		Filename:    "doc.txt",
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got.Metadata[metaAnalysisStatus] != "degraded" {
		t.Errorf("analysis_status = %q, want degraded on timeout", got.Metadata[metaAnalysisStatus])
	}
}

func TestIngestEmbeddingFailureIsLexicalOnly(t *testing.T) {
	saver := &fakeSaver{}
	embedder := &fakeEmbedder{err: errors.New("quota exhausted")}
	p := newTestPipeline(saver, nil, embedder, Options{})

	got, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("findable by words only"),
		Filename:    "doc.txt",
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got.HasEmbedding {
		t.Error("HasEmbedding = true, want false after embed failure")
	}
	if got.Metadata[metaEmbeddingError] == "" {
		t.Error("embedding_error not recorded")
	}
	if len(saver.got.Embedding) != 0 {
		t.Errorf("Embedding = %v, want none", saver.got.Embedding)
	}
}

func TestIngestSaveFailurePropagates(t *testing.T) {
	saver := &fakeSaver{err: knowledge.ErrAtomicWrite}
	p := newTestPipeline(saver, nil, nil, Options{})

	_, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("doomed document"),
		Filename:    "doc.txt",
		ContentType: "text/plain",
	})
	if !errors.Is(err, knowledge.ErrAtomicWrite) {
		t.Fatalf("Ingest() error = %v, want ErrAtomicWrite", err)
	}
}

func TestIngestNoDedup(t *testing.T) {
	saver := &fakeSaver{}
	p := newTestPipeline(saver, nil, nil, Options{})
	req := Request{Raw: []byte("same bytes"), Filename: "a.txt", ContentType: "text/plain"}

	first, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("identical bytes must produce two distinct items")
	}
}

func TestIngestUnknownTypeFallsBackToPlainText(t *testing.T) {
	saver := &fakeSaver{}
	p := newTestPipeline(saver, nil, nil, Options{})

	got, err := p.Ingest(context.Background(), Request{
		Raw:         []byte("bytes of an unregistered type"),
		Filename:    "blob.weird",
		ContentType: "application/x-unknown",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got.TextContent != "bytes of an unregistered type" {
		t.Errorf("TextContent = %q", got.TextContent)
	}
}
