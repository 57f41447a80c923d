package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/repcoach/internal/models"
)

// Calendar days are sent as text so the database session time zone cannot
// shift them.
const dateLayout = "2006-01-02"

// GetWeeklyGoal returns the user's weekly rep goal, or def when none is set.
func (db *DB) GetWeeklyGoal(ctx context.Context, userID, def int) (int, error) {
	var goal int
	err := db.Pool.QueryRow(ctx,
		`SELECT weekly_rep_goal FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&goal)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying weekly goal: %w", err)
	}
	return goal, nil
}

// SetWeeklyGoal stores the user's weekly rep goal.
func (db *DB) SetWeeklyGoal(ctx context.Context, userID, goal int) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, weekly_rep_goal, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE
			SET weekly_rep_goal = EXCLUDED.weekly_rep_goal, updated_at = NOW()`,
		userID, goal)
	if err != nil {
		return fmt.Errorf("setting weekly goal: %w", err)
	}
	return nil
}

// MarkChallengeCompleted records a completed daily challenge. Returns false if
// the day was already completed.
func (db *DB) MarkChallengeCompleted(ctx context.Context, row models.ChallengeCompletionRow) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO challenge_completions (user_id, day, title, session_id)
		 VALUES ($1, $2::date, $3, $4)
		 ON CONFLICT DO NOTHING`,
		row.UserID, row.Day.Format(dateLayout), row.Title, row.SessionID)
	if err != nil {
		return false, fmt.Errorf("marking challenge completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsChallengeCompleted reports whether the user completed the challenge of day.
func (db *DB) IsChallengeCompleted(ctx context.Context, userID int, day time.Time) (bool, error) {
	var done bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenge_completions WHERE user_id = $1 AND day = $2::date)`,
		userID, day.Format(dateLayout),
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("querying challenge completion: %w", err)
	}
	return done, nil
}
