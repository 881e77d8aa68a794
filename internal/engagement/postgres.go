package engagement

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
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

// Record stores a single event.
func (r *PostgresRepository) Record(event *Event) error {
	return r.RecordBatch([]*Event{event})
}

// RecordBatch stores a batch of events in one transaction.
// Either every event in the batch is stored or none are.
func (r *PostgresRepository) RecordBatch(events []*Event) error {
	for _, e := range events {
		if e.OwnerID == "" {
			return ErrEmptyOwner
		}
	}

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		r.logger.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback transaction",
				slog.String("error", err.Error()))
		}
	}()

	const insertQuery = `
		INSERT INTO engagement_events (
			id, owner_id, content_id, time_spent_ms, scroll_depth,
			scroll_speed, completion_rate, time_of_day, day_of_week, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.RecordedAt.IsZero() {
			event.RecordedAt = now
		}

		_, err := tx.ExecContext(ctx, insertQuery,
			event.ID, event.OwnerID, event.ContentID, event.TimeSpent,
			event.ScrollDepth, event.ScrollSpeed, event.CompletionRate,
			event.TimeOfDay, event.DayOfWeek, event.RecordedAt)
		if err != nil {
			r.logger.Error("failed to insert engagement event",
				slog.String("error", err.Error()),
				slog.String("content_id", event.ContentID))
			return fmt.Errorf("failed to insert engagement event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// ListRecent returns up to limit events for the owner, most recent first.
func (r *PostgresRepository) ListRecent(ownerID string, limit int) ([]*Event, error) {
	const listQuery = `
		SELECT id, owner_id, content_id, time_spent_ms, scroll_depth,
		       scroll_speed, completion_rate, time_of_day, day_of_week, recorded_at
		FROM engagement_events
		WHERE owner_id = $1
		ORDER BY recorded_at DESC, id ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(context.Background(), listQuery, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagement events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.ContentID, &e.TimeSpent,
			&e.ScrollDepth, &e.ScrollSpeed, &e.CompletionRate,
			&e.TimeOfDay, &e.DayOfWeek, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate engagement events: %w", err)
	}

	return events, nil
}
