package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Import log states. A CLI import is logged as running first and updated
// once the file is done.
const (
	ImportRunning = "running"
	ImportSuccess = "success"
	ImportError   = "error"
)

const defaultImportLogLimit = 50

// ImportLog records the outcome of one workout-history import.
type ImportLog struct {
	ID               int64            `json:"id" db:"id"`
	UserID           int              `json:"user_id" db:"user_id"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	Source           string           `json:"source" db:"source"`
	Status           string           `json:"status" db:"status"`
	RecordsReceived  int              `json:"records_received" db:"records_received"`
	SessionsInserted int              `json:"sessions_inserted" db:"sessions_inserted"`
	RecordsSkipped   int              `json:"records_skipped" db:"records_skipped"`
	DurationMs       *int             `json:"duration_ms" db:"duration_ms"`
	ErrorMessage     *string          `json:"error_message" db:"error_message"`
	Metadata         *json.RawMessage `json:"metadata" db:"metadata"`
}

func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	if log.Status == "" {
		log.Status = ImportRunning
	}
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO import_logs (user_id, source, status, records_received, sessions_inserted,
			records_skipped, duration_ms, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, log.UserID, log.Source, log.Status, log.RecordsReceived, log.SessionsInserted,
		log.RecordsSkipped, log.DurationMs, log.ErrorMessage, log.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting %s import log: %w", log.Source, err)
	}
	return id, nil
}

// UpdateImportLog overwrites the counts and final status of a running import.
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE import_logs
		SET status = $2, records_received = $3, sessions_inserted = $4,
			records_skipped = $5, duration_ms = $6, error_message = $7, metadata = $8
		WHERE id = $1
	`, id, log.Status, log.RecordsReceived, log.SessionsInserted,
		log.RecordsSkipped, log.DurationMs, log.ErrorMessage, log.Metadata,
	)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating import log %d: %w", id, ErrNotFound)
	}
	return nil
}

// QueryImportLogs returns a user's imports, newest first.
func (db *DB) QueryImportLogs(ctx context.Context, userID, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = defaultImportLogLimit
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, created_at, source, status, records_received, sessions_inserted,
			records_skipped, duration_ms, error_message, metadata
		FROM import_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToStructByName[ImportLog])
	if err != nil {
		return nil, fmt.Errorf("scanning import logs: %w", err)
	}
	return logs, nil
}
