package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// ContentItem is a persisted unit of ingested, normalized content plus
// derived metadata. It is the aggregate root for Concepts: concepts and tag
// associations for an item are only ever written through SaveItem, never
// directly.
type ContentItem struct {
	ID          uuid.UUID
	Title       string
	Source      string // origin: URL, filename, email address
	ContentType string
	TextContent string // normalized body, never empty once persisted
	Summary     string // derived, may be empty

	// HasEmbedding reports whether an embedding reference is stored for this
	// item. The vector itself stays in the database; it is opaque to callers
	// and cleared whenever TextContent changes.
	HasEmbedding bool

	Metadata map[string]string

	UserID   string // empty = not attributed to a user
	TenantID string // empty = untenanted

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Concept is a named entity or topic derived from one ContentItem.
// Concepts are exclusively owned by their item; deleting the item deletes
// its concepts (ON DELETE CASCADE).
type Concept struct {
	ID         uuid.UUID
	ContentID  uuid.UUID
	Name       string
	Type       string // free-form category: person, organization, topic, ...
	Confidence float32
	CreatedAt  time.Time
}

// Tag is a reusable label shared across content items via a many-to-many
// association. Names are globally unique and case-sensitive.
type Tag struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// SearchQuery is an append-only analytics record. It is never read by the
// search path itself.
type SearchQuery struct {
	ID           uuid.UUID
	QueryText    string
	UserID       string
	TenantID     string
	ResultsCount int
	CreatedAt    time.Time
}

// Scope restricts reads to a tenant and/or user. Empty fields mean
// unscoped. When a field is set, the store applies it in SQL — scoped reads
// can never return rows outside the scope.
type Scope struct {
	TenantID string
	UserID   string
}

// Filter selects content items for listing.
type Filter struct {
	Scope
	ContentType   string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	HasEmbedding  *bool // nil = either
	Limit         int32 // 0 = default
	Offset        int32
}

// SaveRequest is the input to the atomic enrichment write: one ContentItem
// plus its derived concepts and tag associations, committed together or not
// at all.
type SaveRequest struct {
	Item ContentItem

	// Embedding is the vector to store as the item's embedding reference.
	// nil or empty means no embedding.
	Embedding []float32

	Concepts []Concept
	TagNames []string
}

// LexicalResult is a full-text match with its ts_rank score.
type LexicalResult struct {
	Item ContentItem
	Rank float32
}

// SemanticResult is a vector-similarity match. Similarity is cosine
// similarity in [0, 1], higher is closer.
type SemanticResult struct {
	Item       ContentItem
	Similarity float32
}
