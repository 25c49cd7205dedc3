// Package knowledge is the persistence layer for the content repository:
// content items, their derived concepts, shared tags, and the search query
// log, stored in PostgreSQL with pgvector.
//
// The central invariant is the atomic enrichment write. SaveItem commits an
// item together with all of its concepts, tag associations and optional
// embedding in one transaction, so readers never observe an item with only
// part of its derived metadata. Concepts have no write path of their own.
//
// Reads take a Scope. A set tenant or user field is enforced in SQL, which
// makes cross-tenant leakage a query-shape bug rather than a caller
// discipline problem. An out-of-scope row is reported as ErrNotFound,
// indistinguishable from a missing one.
//
// Embeddings are opaque to callers: the store exposes only whether an item
// has one (ContentItem.HasEmbedding) and clears it when the text changes.
package knowledge
