// Package reps counts exercise repetitions and grades form from body-landmark
// frames. Analysis is a pure function of the caller-held phase and counter.
package reps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownWorkout is returned for workout names that match no rule set.
var ErrUnknownWorkout = errors.New("unknown workout")

// Workout selects which joints and thresholds apply. The zero value is not a
// valid workout.
type Workout int

const (
	PushUp Workout = iota + 1
	Squat
)

// Workouts lists every supported workout.
var Workouts = []Workout{PushUp, Squat}

// ParseWorkout accepts the wire tags ("PUSH_UP", "SQUAT") as well as the
// display names stored in history ("Push-ups", "Squats"), case-insensitively.
func ParseWorkout(s string) (Workout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push_up", "pushup", "push-up", "push-ups", "pushups", "push_ups":
		return PushUp, nil
	case "squat", "squats":
		return Squat, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWorkout, s)
}

// String returns the wire tag.
func (w Workout) String() string {
	switch w {
	case PushUp:
		return "PUSH_UP"
	case Squat:
		return "SQUAT"
	}
	return fmt.Sprintf("Workout(%d)", int(w))
}

// DisplayName returns the name used in session history and challenges.
func (w Workout) DisplayName() string {
	switch w {
	case PushUp:
		return "Push-ups"
	case Squat:
		return "Squats"
	}
	return w.String()
}

// Valid reports whether w is one of the supported workouts.
func (w Workout) Valid() bool {
	return w == PushUp || w == Squat
}

func (w Workout) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWorkout, int(w))
	}
	return []byte(w.String()), nil
}

func (w *Workout) UnmarshalText(text []byte) error {
	parsed, err := ParseWorkout(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Phase is the coarse position within a repetition. The zero value is Up,
// which is where every session starts.
type Phase int

const (
	Up Phase = iota
	Down
)

func (p Phase) String() string {
	if p == Down {
		return "down"
	}
	return "up"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "up":
		*p = Up
	case "down":
		*p = Down
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}
