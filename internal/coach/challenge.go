// Package coach holds the motivational layer around finished sessions:
// daily challenges, the weekly rep goal and the prompt for an LLM coach.
package coach

import (
	"strings"
	"time"
)

// Challenge is a single-session rep target.
type Challenge struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	RepGoal      int    `json:"rep_goal"`
	ExerciseType string `json:"exercise_type"`
}

// Challenges is the daily rotation, indexed by day of year.
var Challenges = []Challenge{
	{"Quick 15", "Do 15 push-ups in a single session.", 15, "Push-ups"},
	{"Morning Burst", "Get your blood pumping with 20 push-ups.", 20, "Push-ups"},
	{"Solid Strength", "Show your strength with 25 push-ups.", 25, "Push-ups"},
	{"The Challenger", "Push your limits with 30 push-ups.", 30, "Push-ups"},
	{"Endurance Test", "Go the distance with 35 push-ups.", 35, "Push-ups"},
}

// DailyChallenge returns the challenge for t's calendar day in t's location.
func DailyChallenge(t time.Time) Challenge {
	return Challenges[t.YearDay()%len(Challenges)]
}

// CompletedBy reports whether a session of exercise with reps meets the
// challenge.
func (c Challenge) CompletedBy(exercise string, reps int) bool {
	return reps >= c.RepGoal && strings.EqualFold(exercise, c.ExerciseType)
}

// Day truncates t to midnight in its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
