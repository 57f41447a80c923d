package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/repcoach/internal/models"
)

// ErrNotFound is returned when a requested row does not exist for the user.
var ErrNotFound = errors.New("not found")

const sessionColumns = `id, user_id, started_at, ended_at, exercise_type, reps, score,
	 frames_analyzed, frames_invalid, avg_heart_rate, max_heart_rate, min_heart_rate, source`

// InsertSession inserts a finished session. Returns true if inserted, false if duplicate.
func (db *DB) InsertSession(ctx context.Context, row models.SessionRow) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 ON CONFLICT DO NOTHING`,
		row.ID, row.UserID, row.StartedAt, row.EndedAt, row.ExerciseType, row.Reps, row.Score,
		row.FramesAnalyzed, row.FramesInvalid, row.AvgHeartRate, row.MaxHeartRate, row.MinHeartRate,
		row.Source)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertSessionHeartRate batch-inserts watch heart rate samples. Returns count inserted.
func (db *DB) InsertSessionHeartRate(ctx context.Context, rows []models.HeartRateRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO session_heart_rate (time, session_id, user_id, bpm) VALUES `
	args := make([]any, 0, len(rows)*4)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 4
		valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		args = append(args, r.Time, r.SessionID, r.UserID, r.BPM)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting session heart rate: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SessionFilter narrows QuerySessions. Zero fields are not applied.
type SessionFilter struct {
	Start        time.Time
	End          time.Time
	ExerciseType string
	Limit        int
}

// SessionDetail is a session with its heart rate samples.
type SessionDetail struct {
	models.SessionRow
	HeartRate []models.HeartRateRow `json:"heart_rate"`
}

// QuerySessions retrieves a user's sessions, newest first.
func (db *DB) QuerySessions(ctx context.Context, f SessionFilter, userID int) ([]models.SessionRow, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		where = append(where, fmt.Sprintf("started_at < $%d", len(args)))
	}
	if f.ExerciseType != "" {
		args = append(args, f.ExerciseType)
		where = append(where, fmt.Sprintf("lower(exercise_type) = lower($%d)", len(args)))
	}
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

// GetSession retrieves a single session by ID with its heart rate samples.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID int) (*SessionDetail, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		id, userID)

	var s models.SessionRow
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	detail := &SessionDetail{SessionRow: s}

	hrRows, err := db.Pool.Query(ctx,
		`SELECT time, session_id, user_id, bpm
		 FROM session_heart_rate
		 WHERE session_id = $1 AND user_id = $2
		 ORDER BY time ASC`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session heart rate: %w", err)
	}
	defer hrRows.Close()

	for hrRows.Next() {
		var hr models.HeartRateRow
		if err := hrRows.Scan(&hr.Time, &hr.SessionID, &hr.UserID, &hr.BPM); err != nil {
			return nil, fmt.Errorf("scanning session heart rate: %w", err)
		}
		detail.HeartRate = append(detail.HeartRate, hr)
	}
	return detail, hrRows.Err()
}

// RepsBetween sums reps of sessions started in [start, end). An empty
// exerciseType counts every exercise.
func (db *DB) RepsBetween(ctx context.Context, start, end time.Time, exerciseType string, userID int) (int, error) {
	var total int
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(reps), 0)::int
		 FROM workout_sessions
		 WHERE user_id = $1 AND started_at >= $2 AND started_at < $3
		   AND ($4 = '' OR lower(exercise_type) = lower($4))`,
		userID, start, end, exerciseType,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing reps: %w", err)
	}
	return total, nil
}

func scanSession(row pgx.Row, s *models.SessionRow) error {
	return row.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.ExerciseType, &s.Reps, &s.Score,
		&s.FramesAnalyzed, &s.FramesInvalid, &s.AvgHeartRate, &s.MaxHeartRate, &s.MinHeartRate,
		&s.Source)
}

func scanSessionRows(rows pgx.Rows) ([]models.SessionRow, error) {
	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
