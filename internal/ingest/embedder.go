package ingest

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Embedder turns text into a vector. Implementations are best-effort: a
// failure degrades the item to lexical-only search, it never blocks
// ingestion.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AIEmbedder adapts a Genkit embedder (GoogleAIEmbedder in production) to
// the single-text Embedder interface used by the pipeline and the search
// engine.
type AIEmbedder struct {
	embedder ai.Embedder
}

func NewAIEmbedder(embedder ai.Embedder) *AIEmbedder {
	return &AIEmbedder{embedder: embedder}
}

func (a *AIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return resp.Embeddings[0].Embedding, nil
}
