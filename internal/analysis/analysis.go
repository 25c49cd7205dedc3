// Package analysis derives enrichment metadata from normalized text: a
// summary, named entities, topics and sentiment. The production
// implementation calls Gemini; callers treat the whole package as
// best-effort and must degrade gracefully when it fails.
package analysis

import (
	"context"
	"errors"
)

// ErrEmptyInput indicates there was no text to analyze.
var ErrEmptyInput = errors.New("no text to analyze")

// Entity is a named thing recognized in the text.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"` // person, organization, location, product, topic, other
	Confidence float32 `json:"confidence"`
}

// Sentiment is the overall tone of the text. Score runs from -1 (negative)
// to 1 (positive).
type Sentiment struct {
	Label      string  `json:"label"` // positive, negative, neutral, mixed
	Score      float32 `json:"score"`
	Confidence float32 `json:"confidence"`
}

// Result is everything one analysis pass produced. Any field may be empty;
// partial results are still useful.
type Result struct {
	Summary   string     `json:"summary"`
	Entities  []Entity   `json:"entities"`
	Topics    []string   `json:"topics"`
	Sentiment *Sentiment `json:"sentiment"`
}

// Analyzer produces enrichment metadata for one piece of text. Metadata
// carries hints about the content (source, content type) that the analyzer
// may use for context.
type Analyzer interface {
	Analyze(ctx context.Context, text string, metadata map[string]string) (*Result, error)
}
