package reps

import "github.com/claude/repcoach/internal/pose"

// Feedback classifies the posture seen in one frame.
type Feedback string

const (
	GoodForm   Feedback = "good_form"
	HipsLow    Feedback = "hips_low"
	HipsHigh   Feedback = "hips_high"
	ChestNotUp Feedback = "chest_not_up"
)

// Message returns the spoken/overlay text for the feedback.
func (f Feedback) Message(w Workout) string {
	switch f {
	case HipsLow:
		return "Keep your back straight! Don't drop your hips."
	case HipsHigh:
		return "Keep your back straight! Don't raise your hips."
	case ChestNotUp:
		return "Keep your chest up!"
	}
	if w == Squat {
		return "Good squat!"
	}
	return "Great Form!"
}

// Verdict is the form assessment for one frame. It is produced fresh on every
// call and not retained by the analyzer.
type Verdict struct {
	Correct  bool              `json:"correct"`
	Feedback Feedback          `json:"feedback"`
	Message  string            `json:"message"`
	Angles   []pose.JointAngle `json:"angles"`
}

func newVerdict(w Workout, f Feedback, angles []pose.JointAngle) Verdict {
	return Verdict{
		Correct:  f == GoodForm,
		Feedback: f,
		Message:  f.Message(w),
		Angles:   angles,
	}
}

// Angle returns the named angle from the verdict, or false if absent.
func (v Verdict) Angle(name string) (float64, bool) {
	for _, a := range v.Angles {
		if a.Name == name {
			return a.Degrees, true
		}
	}
	return 0, false
}
