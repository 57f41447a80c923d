package coach

import (
	"testing"
	"time"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
)

// TestDailyChallengeRotation verifies the day-of-year rotation.
func TestDailyChallengeRotation(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), "Morning Burst"},  // day 1
		{time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC), "Quick 15"},       // day 5
		{time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC), "Endurance Test"},  // day 9
		{time.Date(2026, 12, 31, 8, 0, 0, 0, time.UTC), "Quick 15"},      // day 365
		{time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC), "Morning Burst"}, // day 366
	}
	for _, tt := range tests {
		if got := DailyChallenge(tt.date); got.Title != tt.want {
			t.Errorf("DailyChallenge(%s) = %q, want %q", tt.date.Format("2006-01-02"), got.Title, tt.want)
		}
	}
}

// TestChallengeCompletedBy verifies the rep threshold and case-insensitive
// exercise match.
func TestChallengeCompletedBy(t *testing.T) {
	c := Challenges[2] // Solid Strength, 25
	tests := []struct {
		exercise string
		reps     int
		want     bool
	}{
		{"Push-ups", 25, true},
		{"push-ups", 40, true},
		{"PUSH-UPS", 24, false},
		{"Squats", 50, false},
	}
	for _, tt := range tests {
		if got := c.CompletedBy(tt.exercise, tt.reps); got != tt.want {
			t.Errorf("CompletedBy(%q, %d) = %v, want %v", tt.exercise, tt.reps, got, tt.want)
		}
	}
}

// TestWeekBounds verifies weeks run Monday to Monday, including from a Sunday.
func TestWeekBounds(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{
		monday,
		time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), // Sunday
	} {
		start, end := WeekBounds(d)
		if !start.Equal(monday) {
			t.Errorf("WeekBounds(%v) start = %v, want %v", d, start, monday)
		}
		if !end.Equal(monday.AddDate(0, 0, 7)) {
			t.Errorf("WeekBounds(%v) end = %v", d, end)
		}
	}
}

// TestProgress verifies integer percentages and the zero-goal guard.
func TestProgress(t *testing.T) {
	tests := []struct {
		reps, goal, want int
	}{
		{0, 200, 0},
		{50, 200, 25},
		{199, 200, 99},
		{300, 200, 150},
		{10, 0, 0},
		{10, -5, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.reps, tt.goal); got != tt.want {
			t.Errorf("Progress(%d, %d) = %d, want %d", tt.reps, tt.goal, got, tt.want)
		}
	}

	wp := NewWeeklyProgress(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 300, 200)
	if wp.Display != 100 || wp.Percent != 150 || !wp.Reached {
		t.Errorf("weekly progress = %+v, want display 100, percent 150, reached", wp)
	}
}

// TestPrompt verifies the coaching prompt text.
func TestPrompt(t *testing.T) {
	got := Prompt(reps.PushUp, []pose.JointAngle{
		{Name: "Elbow", Degrees: 92.7},
		{Name: "Hip", Degrees: 170},
	})
	want := "User is doing a push-up. Elbow angle is 92 degrees. Hip angle is 170 degrees. " +
		"Provide short, encouraging, actionable feedback. If form is good, say 'Great form!'."
	if got != want {
		t.Errorf("Prompt = %q\nwant %q", got, want)
	}

	got = Prompt(reps.Squat, nil)
	want = "User is doing a squat. Provide short, encouraging, actionable feedback. If form is good, say 'Great form!'."
	if got != want {
		t.Errorf("Prompt(squat) = %q", got)
	}
}
