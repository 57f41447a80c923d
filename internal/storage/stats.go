package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about all stored data.
type DataStats struct {
	TotalSessions         int64              `json:"total_sessions"`
	TotalReps             int64              `json:"total_reps"`
	TotalHeartRateSamples int64              `json:"total_heart_rate_samples"`
	ChallengesCompleted   int64              `json:"challenges_completed"`
	EarliestSession       *time.Time         `json:"earliest_session"`
	LatestSession         *time.Time         `json:"latest_session"`
	SessionsByExercise    []ExerciseTypeStat `json:"sessions_by_exercise"`
}

// ExerciseTypeStat holds summary stats for a single exercise type.
type ExerciseTypeStat struct {
	ExerciseType  string  `json:"exercise_type"`
	Count         int64   `json:"count"`
	TotalReps     int64   `json:"total_reps"`
	TotalDuration float64 `json:"total_duration_sec"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(reps), 0), MIN(started_at), MAX(started_at)
		 FROM workout_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.TotalReps, &stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_heart_rate WHERE user_id = $1`, userID,
	).Scan(&stats.TotalHeartRateSamples)
	if err != nil {
		return nil, fmt.Errorf("counting heart rate samples: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM challenge_completions WHERE user_id = $1`, userID,
	).Scan(&stats.ChallengesCompleted)
	if err != nil {
		return nil, fmt.Errorf("counting challenge completions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_type, COUNT(*), COALESCE(SUM(reps), 0),
		        COALESCE(SUM(EXTRACT(EPOCH FROM ended_at - started_at)), 0)::float8
		 FROM workout_sessions
		 WHERE user_id = $1
		 GROUP BY exercise_type
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise type stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseTypeStat
		if err := rows.Scan(&s.ExerciseType, &s.Count, &s.TotalReps, &s.TotalDuration); err != nil {
			return nil, fmt.Errorf("scanning exercise type stat: %w", err)
		}
		stats.SessionsByExercise = append(stats.SessionsByExercise, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
