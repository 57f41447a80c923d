package storage

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ExerciseSummary holds lifetime-in-range totals for one exercise type.
type ExerciseSummary struct {
	ExerciseType     string   `json:"exercise_type"`
	Sessions         int      `json:"sessions"`
	TotalReps        int      `json:"total_reps"`
	BestReps         int      `json:"best_reps"`
	AvgReps          float64  `json:"avg_reps"`
	AvgScore         float64  `json:"avg_score"`
	AvgDurationSec   float64  `json:"avg_duration_sec"`
	AvgHeartRate     *float64 `json:"avg_heart_rate,omitempty"`
	TypicalStartTime string   `json:"typical_start_time"`
	StartTimeStdHr   float64  `json:"start_time_stddev_hr"`
}

// GetExerciseSummary returns per-exercise totals for sessions started in [start, end).
// The typical start time is a circular mean so late-night sessions average correctly.
func (db *DB) GetExerciseSummary(ctx context.Context, start, end time.Time, userID int) ([]ExerciseSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_type,
		        COUNT(*)::int,
		        COALESCE(SUM(reps), 0)::int,
		        COALESCE(MAX(reps), 0)::int,
		        AVG(reps)::float8,
		        AVG(score)::float8,
		        AVG(EXTRACT(EPOCH FROM ended_at - started_at))::float8,
		        AVG(avg_heart_rate)
		 FROM workout_sessions
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3
		 GROUP BY exercise_type
		 ORDER BY SUM(reps) DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise summary: %w", err)
	}
	defer rows.Close()

	var result []ExerciseSummary
	index := make(map[string]int)
	for rows.Next() {
		var s ExerciseSummary
		if err := rows.Scan(&s.ExerciseType, &s.Sessions, &s.TotalReps, &s.BestReps,
			&s.AvgReps, &s.AvgScore, &s.AvgDurationSec, &s.AvgHeartRate); err != nil {
			return nil, fmt.Errorf("scanning exercise summary: %w", err)
		}
		index[s.ExerciseType] = len(result)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Start times for circular mean/std.
	timeRows, err := db.Pool.Query(ctx,
		`SELECT exercise_type, started_at
		 FROM workout_sessions
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session start times: %w", err)
	}
	defer timeRows.Close()

	hours := make(map[string][]float64)
	for timeRows.Next() {
		var exercise string
		var startedAt time.Time
		if err := timeRows.Scan(&exercise, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning session start time: %w", err)
		}
		hours[exercise] = append(hours[exercise], timeToHourOfDay(startedAt.In(start.Location())))
	}
	if err := timeRows.Err(); err != nil {
		return nil, err
	}

	for exercise, hs := range hours {
		i, ok := index[exercise]
		if !ok {
			continue
		}
		mean, std := circularMeanStd(hs)
		result[i].TypicalStartTime = hoursToHHMM(mean)
		result[i].StartTimeStdHr = math.Round(std*100) / 100
	}
	return result, nil
}

// ExercisePeriodTotals holds totals for one exercise within a period.
type ExercisePeriodTotals struct {
	ExerciseType string  `json:"exercise_type"`
	Sessions     int     `json:"sessions"`
	Reps         int     `json:"reps"`
	AvgScore     float64 `json:"avg_score"`
}

// PeriodSummary holds per-exercise totals for one time period.
type PeriodSummary struct {
	Period    string                 `json:"period"`
	TotalReps int                    `json:"total_reps"`
	Exercises []ExercisePeriodTotals `json:"exercises"`
}

// GetPeriodSummary returns per-exercise totals grouped by day, week or month.
func (db *DB) GetPeriodSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]PeriodSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, started_at)::date AS period,
		        exercise_type,
		        COUNT(*)::int,
		        COALESCE(SUM(reps), 0)::int,
		        AVG(score)::float8
		 FROM workout_sessions
		 WHERE started_at >= $2 AND started_at < $3 AND user_id = $4
		 GROUP BY period, exercise_type
		 ORDER BY period DESC, SUM(reps) DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying period summary: %w", err)
	}
	defer rows.Close()

	periodMap := make(map[string]*PeriodSummary)
	var periodOrder []string

	for rows.Next() {
		var periodTime time.Time
		var e ExercisePeriodTotals
		if err := rows.Scan(&periodTime, &e.ExerciseType, &e.Sessions, &e.Reps, &e.AvgScore); err != nil {
			return nil, fmt.Errorf("scanning period summary: %w", err)
		}
		key := periodTime.Format("2006-01-02")
		if _, ok := periodMap[key]; !ok {
			periodMap[key] = &PeriodSummary{Period: key}
			periodOrder = append(periodOrder, key)
		}
		p := periodMap[key]
		p.Exercises = append(p.Exercises, e)
		p.TotalReps += e.Reps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]PeriodSummary, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day":
		return "day"
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "week"
	}
}

func timeToHourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
}

// circularMeanStd averages clock hours on the 24h circle.
func circularMeanStd(hours []float64) (mean, std float64) {
	if len(hours) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, h := range hours {
		rad := h / 24.0 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(hours))
	sinAvg := sinSum / n
	cosAvg := cosSum / n

	meanRad := math.Atan2(sinAvg, cosAvg)
	if meanRad < 0 {
		meanRad += 2 * math.Pi
	}
	mean = meanRad / (2 * math.Pi) * 24.0

	r := math.Sqrt(sinAvg*sinAvg + cosAvg*cosAvg)
	if r > 1 {
		r = 1
	}
	if r > 0 {
		std = math.Sqrt(-2*math.Log(r)) / (2 * math.Pi) * 24.0
	}

	return mean, std
}

func hoursToHHMM(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	hours := int(h)
	minutes := int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	if hours >= 24 {
		hours -= 24
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
