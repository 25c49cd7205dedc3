// Package ingest runs the indexing workflow: extract text from raw bytes,
// enrich it through the analysis agent, embed it, and persist everything in
// one atomic write. Only extraction and persistence are load-bearing;
// analysis and embedding degrade gracefully.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corvid-labs/corpus/internal/analysis"
	"github.com/corvid-labs/corpus/internal/extract"
	"github.com/corvid-labs/corpus/internal/knowledge"
)

// Metadata keys the pipeline records on every item.
const (
	metaAnalysisStatus = "analysis_status"
	metaAnalysisError  = "analysis_error"
	metaEmbeddingError = "embedding_error"

	statusComplete = "complete"
	statusFailed   = "failed"
	statusSkipped  = "skipped"
)

// topicConfidence is assigned to concepts derived from the agent's topic
// list, which carries no per-topic confidence of its own.
const topicConfidence = 1.0

// Saver is the slice of the knowledge store the pipeline writes through.
type Saver interface {
	SaveItem(ctx context.Context, req knowledge.SaveRequest) (*knowledge.ContentItem, error)
}

// Request is one document to index.
type Request struct {
	Raw         []byte
	Filename    string
	ContentType string

	Title    string // optional, falls back to Filename
	Source   string // origin URL, path or address
	Metadata map[string]string
	Tags     []string

	UserID   string
	TenantID string
}

// Options tune the non-essential stages.
type Options struct {
	// AnalysisTimeout bounds the agent call. Zero means no extra bound
	// beyond the caller's context.
	AnalysisTimeout time.Duration

	// TagFromTopics associates agent topics as tags in addition to
	// caller-supplied ones.
	TagFromTopics bool
}

// Pipeline wires the indexing stages together. Analyzer and Embedder may be
// nil, which skips those stages entirely.
type Pipeline struct {
	extractor *extract.Registry
	saver     Saver
	analyzer  analysis.Analyzer
	embedder  Embedder
	opts      Options
	logger    *slog.Logger
}

func NewPipeline(extractor *extract.Registry, saver Saver, analyzer analysis.Analyzer, embedder Embedder, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		saver:     saver,
		analyzer:  analyzer,
		embedder:  embedder,
		opts:      opts,
		logger:    logger,
	}
}

// Ingest indexes one document. On success the returned item is fully
// persisted with whatever enrichment succeeded. When extraction yields no
// usable text, it returns extract.ErrEmptyContent and nothing is persisted.
//
// Identical bytes ingested twice produce two independent items; there is no
// dedup.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*knowledge.ContentItem, error) {
	text, err := p.extractor.Extract(ctx, extract.Input{
		Data:        req.Raw,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", req.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("extract %q: %w", req.Filename, extract.ErrEmptyContent)
	}

	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	item := knowledge.ContentItem{
		Title:       req.Title,
		Source:      req.Source,
		ContentType: req.ContentType,
		TextContent: text,
		UserID:      req.UserID,
		TenantID:    req.TenantID,
	}
	if item.Title == "" {
		item.Title = req.Filename
	}
	if item.ContentType == "" {
		item.ContentType = "text/plain"
	}

	result := p.analyze(ctx, text, req, metadata)

	var concepts []knowledge.Concept
	tagNames := append([]string(nil), req.Tags...)
	if result != nil {
		item.Summary = result.Summary
		for _, e := range result.Entities {
			concepts = append(concepts, knowledge.Concept{
				Name:       e.Text,
				Type:       e.Type,
				Confidence: e.Confidence,
			})
		}
		for _, topic := range result.Topics {
			concepts = append(concepts, knowledge.Concept{
				Name:       topic,
				Type:       "topic",
				Confidence: topicConfidence,
			})
		}
		if p.opts.TagFromTopics {
			tagNames = append(tagNames, result.Topics...)
		}
		if result.Sentiment != nil {
			metadata["sentiment"] = result.Sentiment.Label
		}
	}

	embedding := p.embed(ctx, text, req, metadata)

	item.Metadata = metadata
	saved, err := p.saver.SaveItem(ctx, knowledge.SaveRequest{
		Item:      item,
		Embedding: embedding,
		Concepts:  concepts,
		TagNames:  tagNames,
	})
	if err != nil {
		return nil, fmt.Errorf("persist %q: %w", req.Filename, err)
	}

	p.logger.Info("document indexed",
		"content_id", saved.ID,
		"source", saved.Source,
		"content_type", saved.ContentType,
		"concepts", len(concepts),
		"tags", len(tagNames),
		"embedded", saved.HasEmbedding,
		"analysis_status", metadata[metaAnalysisStatus])
	return saved, nil
}

// analyze runs the agent under its timeout. A nil return means no usable
// analysis; the failure mode is recorded in metadata either way.
func (p *Pipeline) analyze(ctx context.Context, text string, req Request, metadata map[string]string) *analysis.Result {
	if p.analyzer == nil {
		metadata[metaAnalysisStatus] = statusSkipped
		return nil
	}

	actx := ctx
	if p.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.opts.AnalysisTimeout)
		defer cancel()
	}

	result, err := p.analyzer.Analyze(actx, text, map[string]string{
		"source":       req.Source,
		"content_type": req.ContentType,
		"title":        req.Title,
	})
	if err != nil {
		status := statusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			status = "degraded"
		}
		metadata[metaAnalysisStatus] = status
		metadata[metaAnalysisError] = err.Error()
		p.logger.Warn("analysis failed, indexing without enrichment",
			"source", req.Source, "error", err)
		return nil
	}

	metadata[metaAnalysisStatus] = statusComplete
	return result
}

// embed generates the item's vector. Failure is recorded and swallowed; the
// item stays findable through lexical search.
func (p *Pipeline) embed(ctx context.Context, text string, req Request, metadata map[string]string) []float32 {
	if p.embedder == nil {
		return nil
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		metadata[metaEmbeddingError] = err.Error()
		p.logger.Warn("embedding failed, item will be lexical-only",
			"source", req.Source, "error", err)
		return nil
	}
	return vec
}
