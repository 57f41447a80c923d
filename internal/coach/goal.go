package coach

import "time"

// DefaultWeeklyGoal is the weekly rep goal for users who never set one.
const DefaultWeeklyGoal = 200

// WeekBounds returns [Monday 00:00, next Monday 00:00) around t in t's location.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	day := Day(t)
	// Weekday: Sunday=0. Shift so Monday=0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// Progress returns reps as a percentage of goal, 0 when goal is not positive.
// It may exceed 100.
func Progress(reps, goal int) int {
	if goal <= 0 {
		return 0
	}
	return reps * 100 / goal
}

// WeeklyProgress is the dashboard view of the weekly goal.
type WeeklyProgress struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Reps      int       `json:"reps"`
	Goal      int       `json:"goal"`
	Percent   int       `json:"percent"`
	Display   int       `json:"display_percent"`
	Reached   bool      `json:"reached"`
}

// NewWeeklyProgress builds the progress view for the week containing now.
func NewWeeklyProgress(now time.Time, reps, goal int) WeeklyProgress {
	start, end := WeekBounds(now)
	pct := Progress(reps, goal)
	return WeeklyProgress{
		WeekStart: start,
		WeekEnd:   end,
		Reps:      reps,
		Goal:      goal,
		Percent:   pct,
		Display:   min(pct, 100),
		Reached:   goal > 0 && reps >= goal,
	}
}
