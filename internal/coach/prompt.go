package coach

import (
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
)

// Prompt builds the coaching request for an LLM from the measured angles.
// Angles are truncated to whole degrees.
func Prompt(w reps.Workout, angles []pose.JointAngle) string {
	name := "push-up"
	if w == reps.Squat {
		name = "squat"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User is doing a %s. ", name)
	for _, a := range angles {
		fmt.Fprintf(&b, "%s angle is %d degrees. ", a.Name, int(a.Degrees))
	}
	b.WriteString("Provide short, encouraging, actionable feedback. If form is good, say 'Great form!'.")
	return b.String()
}
