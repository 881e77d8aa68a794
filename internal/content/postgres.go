package content

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `
	id, owner_id, type, title, source_url, storage_key, created_at,
	last_viewed_at, view_count, completion_rate, semantic_tags,
	embedding_json, updated_at, deleted_at
`

// scanItem scans one row into an Item.
func scanItem(row interface{ Scan(...interface{}) error }) (*Item, error) {
	var item Item
	var tags pq.StringArray
	err := row.Scan(&item.ID, &item.OwnerID, &item.Type, &item.Title,
		&item.SourceURL, &item.StorageKey, &item.CreatedAt,
		&item.LastViewedAt, &item.ViewCount, &item.CompletionRate,
		&tags, &item.EmbeddingJSON, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	item.SemanticTags = []string(tags)
	return &item, nil
}

// Create inserts a new item with a generated UUID.
func (r *PostgresRepository) Create(item *Item) error {
	now := time.Now()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const insertQuery = `
		INSERT INTO content_items (
			id, owner_id, type, title, source_url, storage_key, created_at,
			last_viewed_at, view_count, completion_rate, semantic_tags,
			embedding_json, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(context.Background(), insertQuery,
		item.ID, item.OwnerID, item.Type, item.Title, item.SourceURL,
		item.StorageKey, item.CreatedAt, item.LastViewedAt, item.ViewCount,
		item.CompletionRate, pq.Array(item.SemanticTags),
		item.EmbeddingJSON, item.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert content item",
			slog.String("error", err.Error()),
			slog.String("owner_id", item.OwnerID))
		return fmt.Errorf("failed to insert content item: %w", err)
	}
	return nil
}

// Update updates an existing item's mutable fields.
func (r *PostgresRepository) Update(item *Item) error {
	const updateQuery = `
		UPDATE content_items
		SET type = $2, title = $3, source_url = $4, storage_key = $5,
		    semantic_tags = $6, embedding_json = $7, completion_rate = $8,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(context.Background(), updateQuery,
		item.ID, item.Type, item.Title, item.SourceURL, item.StorageKey,
		pq.Array(item.SemanticTags), item.EmbeddingJSON, item.CompletionRate)
	if err != nil {
		return fmt.Errorf("failed to update content item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// UpdateProgress applies a reading-progress update in one statement.
func (r *PostgresRepository) UpdateProgress(id string, progress Progress) (*Item, error) {
	viewedAt := progress.ViewedAt
	if viewedAt.IsZero() {
		viewedAt = time.Now()
	}

	query := `
		UPDATE content_items
		SET view_count = view_count + 1, last_viewed_at = $2,
		    completion_rate = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING` + itemColumns

	row := r.db.QueryRowContext(context.Background(), query, id, viewedAt, progress.CompletionRate)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reading progress: %w", err)
	}
	return item, nil
}

// Delete soft-deletes an item by setting deleted_at.
func (r *PostgresRepository) Delete(id string) error {
	const deleteQuery = `
		UPDATE content_items
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(context.Background(), deleteQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete content item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetByID retrieves an item by UUID, excluding soft-deleted items.
func (r *PostgresRepository) GetByID(id string) (*Item, error) {
	query := `SELECT` + itemColumns + `FROM content_items WHERE id = $1 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(context.Background(), query, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// ListByOwner retrieves items for an owner with cursor-based pagination.
func (r *PostgresRepository) ListByOwner(ownerID string, limit int, cursor *ListCursor) ([]*Item, *ListCursor, error) {
	var rows *sql.Rows
	var err error

	if cursor != nil {
		query := `
			SELECT` + itemColumns + `
			FROM content_items
			WHERE owner_id = $1 AND deleted_at IS NULL
			  AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id ASC
			LIMIT $4
		`
		rows, err = r.db.QueryContext(context.Background(), query,
			ownerID, cursor.CreatedAt, cursor.ID, limit+1)
	} else {
		query := `
			SELECT` + itemColumns + `
			FROM content_items
			WHERE owner_id = $1 AND deleted_at IS NULL
			ORDER BY created_at DESC, id ASC
			LIMIT $2
		`
		rows, err = r.db.QueryContext(context.Background(), query, ownerID, limit+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list content items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate content items: %w", err)
	}

	var nextCursor *ListCursor
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		nextCursor = &ListCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return items, nextCursor, nil
}

// ListAllByOwner retrieves every non-deleted item for an owner.
func (r *PostgresRepository) ListAllByOwner(ownerID string) ([]*Item, error) {
	query := `
		SELECT` + itemColumns + `
		FROM content_items
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id ASC
	`

	rows, err := r.db.QueryContext(context.Background(), query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content items: %w", err)
	}
	return items, nil
}
