package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	searchTimeout = 10 * time.Second
)

// itemColumns is the canonical SELECT list for content_items. Every scan
// goes through scanItem, so the order here is load-bearing.
const itemColumns = `id, title, source, content_type, text_content, summary,
	embedding IS NOT NULL, metadata, user_id, tenant_id, created_at, updated_at`

// tsvExpr mirrors the GIN expression index on content_items; the two must
// stay in lockstep or full-text queries fall back to sequential scans.
const tsvExpr = `to_tsvector('english', coalesce(title, '') || ' ' || coalesce(summary, '') || ' ' || text_content)`

// Store provides persistence for content items, concepts, tags and search
// query logs on PostgreSQL. All multi-row writes for one item go through a
// single transaction.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore wraps an existing connection pool. The pool must have pgvector
// types registered; Connect does this.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Connect opens a pgx pool with pgvector type support and verifies the
// connection with a ping.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// SaveItem persists a content item together with its concepts, tag
// associations and optional embedding in one transaction. Partial writes
// never survive: on any failure the transaction rolls back and the error is
// wrapped in ErrAtomicWrite (or a structural error such as
// ErrForeignKeyViolation).
//
// Tag names are resolved inside the transaction with
// INSERT ... ON CONFLICT DO NOTHING, so two concurrent saves racing on the
// same new tag name both succeed and share one tag row. Serialization
// failures and deadlocks get a single retry.
func (s *Store) SaveItem(ctx context.Context, req SaveRequest) (*ContentItem, error) {
	if strings.TrimSpace(req.Item.TextContent) == "" {
		return nil, ErrEmptyTextContent
	}

	item := req.Item
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.Before(item.CreatedAt) {
		item.UpdatedAt = item.CreatedAt
	}
	if item.Metadata == nil {
		item.Metadata = map[string]string{}
	}
	item.HasEmbedding = len(req.Embedding) > 0

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := s.saveItemTx(ctx, item, req)
		if err == nil {
			return &item, nil
		}
		if errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrForeignKeyViolation) {
			return nil, err
		}
		lastErr = err
		if !isRetryableTxError(err) {
			break
		}
		s.logger.Warn("retrying enrichment transaction",
			"content_id", item.ID, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrAtomicWrite, lastErr)
}

func (s *Store) saveItemTx(ctx context.Context, item ContentItem, req SaveRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("transaction rollback failed", "error", err)
		}
	}()

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var emb *pgvector.Vector
	if len(req.Embedding) > 0 {
		v := pgvector.NewVector(req.Embedding)
		emb = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO content_items
			(id, title, source, content_type, text_content, summary,
			 embedding, metadata, user_id, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.Title, item.Source, item.ContentType, item.TextContent,
		nullIfEmpty(item.Summary), emb, metadataJSON,
		nullIfEmpty(item.UserID), nullIfEmpty(item.TenantID),
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}

	for _, c := range req.Concepts {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO concepts (id, content_id, name, type, confidence)
			VALUES ($1, $2, $3, $4, $5)`,
			id, item.ID, c.Name, c.Type, c.Confidence)
		if err != nil {
			return mapPgError(err)
		}
	}

	for _, name := range dedupeNames(req.TagNames) {
		tagID, err := resolveTag(ctx, tx, name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO content_tags (content_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			item.ID, tagID)
		if err != nil {
			return mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// resolveTag finds or creates the tag row for name inside the transaction.
// The insert-then-select order makes the race with a concurrent creator
// benign: the loser's insert is a no-op and the select sees the winner's
// row.
func resolveTag(ctx context.Context, tx pgx.Tx, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO tags (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`,
		uuid.New(), name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, mapPgError(err)
	}
	return id, nil
}

// GetItem fetches one content item by ID within the given scope. An item
// outside the scope reports ErrNotFound, same as a missing one.
func (s *Store) GetItem(ctx context.Context, id uuid.UUID, scope Scope) (*ContentItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM content_items
		WHERE id = $1
		  AND ($2::text IS NULL OR tenant_id = $2)
		  AND ($3::text IS NULL OR user_id = $3)`,
		id, nullIfEmpty(scope.TenantID), nullIfEmpty(scope.UserID))

	item, err := s.scanItem(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return item, nil
}

// ListItems returns content items matching the filter, newest first.
func (s *Store) ListItems(ctx context.Context, f Filter) ([]ContentItem, error) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ContentType != "" {
		add("content_type = $%d", f.ContentType)
	}
	if !f.CreatedAfter.IsZero() {
		add("created_at >= $%d", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore)
	}
	if f.HasEmbedding != nil {
		if *f.HasEmbedding {
			conds = append(conds, "embedding IS NOT NULL")
		} else {
			conds = append(conds, "embedding IS NULL")
		}
	}

	query := `SELECT ` + itemColumns + ` FROM content_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return s.collectItems(rows)
}

// GetConcepts returns the concepts derived from one content item.
func (s *Store) GetConcepts(ctx context.Context, contentID uuid.UUID) ([]Concept, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content_id, name, type, confidence, created_at
		FROM concepts
		WHERE content_id = $1
		ORDER BY confidence DESC, name`,
		contentID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Name, &c.Type, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateTag creates a standalone tag. A duplicate name reports
// ErrUniqueViolation.
func (s *Store) CreateTag(ctx context.Context, name, description string) (*Tag, error) {
	tag := Tag{ID: uuid.New(), Name: name, Description: description}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tags (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		tag.ID, tag.Name, nullIfEmpty(tag.Description)).Scan(&tag.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &tag, nil
}

// GetTagByName looks a tag up by its exact, case-sensitive name.
func (s *Store) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, coalesce(description, ''), created_at
		FROM tags
		WHERE name = $1`,
		name)

	var t Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &t, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, coalesce(description, ''), created_at
		FROM tags
		ORDER BY name`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTags returns the tags associated with one content item.
func (s *Store) GetTags(ctx context.Context, contentID uuid.UUID) ([]Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, coalesce(t.description, ''), t.created_at
		FROM tags t
		JOIN content_tags ct ON ct.tag_id = t.id
		WHERE ct.content_id = $1
		ORDER BY t.name`,
		contentID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTextContent replaces an item's text and clears its embedding
// reference, since the stored vector no longer describes the new text.
func (s *Store) UpdateTextContent(ctx context.Context, id uuid.UUID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTextContent
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_items
		SET text_content = $2, embedding = NULL, updated_at = now()
		WHERE id = $1`,
		id, text)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearEmbedding drops an item's embedding reference without touching its
// text.
func (s *Store) ClearEmbedding(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_items
		SET embedding = NULL, updated_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmbedding stores a new embedding reference for an item.
func (s *Store) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) == 0 {
		return s.ClearEmbedding(ctx, id)
	}
	v := pgvector.NewVector(embedding)
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_items
		SET embedding = $2, updated_at = now()
		WHERE id = $1`,
		id, v)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LogSearchQuery appends one row to the search analytics log.
func (s *Store) LogSearchQuery(ctx context.Context, q SearchQuery) error {
	id := q.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_queries (id, query_text, user_id, tenant_id, results_count)
		VALUES ($1, $2, $3, $4, $5)`,
		id, q.QueryText, nullIfEmpty(q.UserID), nullIfEmpty(q.TenantID), q.ResultsCount)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// SearchLexical runs a full-text query over title, summary and text content
// using websearch syntax, ranked by ts_rank with recency as tie-break.
func (s *Store) SearchLexical(ctx context.Context, query string, scope Scope, limit int32) ([]LexicalResult, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`,
		       ts_rank(`+tsvExpr+`, websearch_to_tsquery('english', $1)) AS rank
		FROM content_items
		WHERE `+tsvExpr+` @@ websearch_to_tsquery('english', $1)
		  AND ($2::text IS NULL OR tenant_id = $2)
		  AND ($3::text IS NULL OR user_id = $3)
		ORDER BY rank DESC, created_at DESC
		LIMIT $4`,
		query, nullIfEmpty(scope.TenantID), nullIfEmpty(scope.UserID), limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []LexicalResult
	for rows.Next() {
		var r LexicalResult
		item, err := s.scanItemExtra(rows, &r.Rank)
		if err != nil {
			return nil, err
		}
		r.Item = *item
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchSemantic returns the items nearest to the query embedding by cosine
// similarity. Items without an embedding reference never match.
func (s *Store) SearchSemantic(ctx context.Context, embedding []float32, scope Scope, limit int32) ([]SemanticResult, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`,
		       1 - (embedding <=> $1) AS similarity
		FROM content_items
		WHERE embedding IS NOT NULL
		  AND ($2::text IS NULL OR tenant_id = $2)
		  AND ($3::text IS NULL OR user_id = $3)
		ORDER BY embedding <=> $1, created_at DESC
		LIMIT $4`,
		pgvector.NewVector(embedding), nullIfEmpty(scope.TenantID), nullIfEmpty(scope.UserID), limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []SemanticResult
	for rows.Next() {
		var sim float64
		item, err := s.scanItemExtra(rows, &sim)
		if err != nil {
			return nil, err
		}
		out = append(out, SemanticResult{Item: *item, Similarity: float32(sim)})
	}
	return out, rows.Err()
}

func (s *Store) collectItems(rows pgx.Rows) ([]ContentItem, error) {
	var out []ContentItem
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// scanItem reads one row in itemColumns order.
func (s *Store) scanItem(row pgx.Row) (*ContentItem, error) {
	return s.scanItemExtra(row)
}

// scanItemExtra reads itemColumns plus any trailing expression columns
// (rank, similarity) into extra.
func (s *Store) scanItemExtra(row pgx.Row, extra ...any) (*ContentItem, error) {
	var (
		item             ContentItem
		summary          *string
		userID, tenantID *string
		metadataJSON     []byte
	)
	dest := []any{
		&item.ID, &item.Title, &item.Source, &item.ContentType,
		&item.TextContent, &summary, &item.HasEmbedding, &metadataJSON,
		&userID, &tenantID, &item.CreatedAt, &item.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if summary != nil {
		item.Summary = *summary
	}
	if userID != nil {
		item.UserID = *userID
	}
	if tenantID != nil {
		item.TenantID = *tenantID
	}
	item.Metadata = map[string]string{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &item.Metadata); err != nil {
			s.logger.Warn("malformed metadata, keeping item",
				"content_id", item.ID, "error", err)
			item.Metadata = map[string]string{}
		}
	}
	return &item, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
