package models

import (
	"time"

	"github.com/google/uuid"
)

// Session sources.
const (
	SourceLive   = "live"
	SourceReplay = "replay"
	SourceImport = "import"
)

// SessionRow is a row ready for insertion into the workout_sessions table.
type SessionRow struct {
	ID             uuid.UUID `json:"id"`
	UserID         int       `json:"user_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	ExerciseType   string    `json:"exercise_type"`
	Reps           int       `json:"reps"`
	Score          int       `json:"score"`
	FramesAnalyzed int       `json:"frames_analyzed"`
	FramesInvalid  int       `json:"frames_invalid"`
	AvgHeartRate   *float64  `json:"avg_heart_rate,omitempty"`
	MaxHeartRate   *float64  `json:"max_heart_rate,omitempty"`
	MinHeartRate   *float64  `json:"min_heart_rate,omitempty"`
	Source         string    `json:"source"`
}

// DurationSec returns the session length in seconds.
func (r SessionRow) DurationSec() float64 {
	return r.EndedAt.Sub(r.StartedAt).Seconds()
}

// HeartRateRow is a row for the session_heart_rate table.
type HeartRateRow struct {
	Time      time.Time `json:"time"`
	SessionID uuid.UUID `json:"session_id"`
	UserID    int       `json:"user_id"`
	BPM       int       `json:"bpm"`
}

// ChallengeCompletionRow is a row for the challenge_completions table.
type ChallengeCompletionRow struct {
	UserID    int       `json:"user_id"`
	Day       time.Time `json:"day"`
	Title     string    `json:"title"`
	SessionID uuid.UUID `json:"session_id"`
}
