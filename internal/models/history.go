package models

import "time"

// HistoryRecord is one finished session from a workout-history CSV export
// (columns: id, date, exerciseType, reps, score).
type HistoryRecord struct {
	LegacyID     int
	Date         time.Time
	ExerciseType string
	Reps         int
	Score        int
}
