package reps

import (
	"fmt"

	"github.com/claude/repcoach/internal/pose"
)

// Push-up thresholds, in degrees of pose.Angle.
const (
	pushUpDownElbow = 90.0  // below: bottom of the rep
	pushUpUpElbow   = 160.0 // above: arms locked out
	pushUpHipGate   = 150.0 // strict rules: hips must stay above this to move phase
	pushUpHipLow    = 150.0
	pushUpHipHigh   = 195.0
)

// Squat thresholds, in degrees of pose.Angle.
const (
	squatDownKnee   = 100.0
	squatDownHip    = 100.0
	squatUpKnee     = 160.0
	squatUpHip      = 170.0
	squatRisingKnee = 100.0 // form is only graded once the knee opens past this
	squatChestHip   = 150.0
)

// Angle names reported in Verdict.Angles.
const (
	AngleElbow = "Elbow"
	AngleHip   = "Hip"
	AngleKnee  = "Knee"
)

// Rules selects between rule variants.
type Rules struct {
	// StrictPushUp also requires the hip angle to exceed 150° before either
	// push-up phase transition, so a sagging body never counts.
	StrictPushUp bool
}

// Joints returns the landmarks a workout reads.
func Joints(w Workout) []pose.Index {
	switch w {
	case PushUp:
		return []pose.Index{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip, pose.LeftKnee}
	case Squat:
		return []pose.Index{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	}
	return nil
}

// Analyze advances the rep state machine by one frame using the default rules.
// See Rules.Analyze.
func Analyze(phase Phase, count uint32, w Workout, frame pose.Frame) (Phase, uint32, Verdict, error) {
	return Rules{}.Analyze(phase, count, w, frame)
}

// Analyze advances the rep state machine by one frame. It returns the new
// phase, the counter (incremented only on a Down→Up transition) and the form
// verdict. On error the input phase and counter are returned unchanged.
func (r Rules) Analyze(phase Phase, count uint32, w Workout, frame pose.Frame) (Phase, uint32, Verdict, error) {
	if err := frame.Require(Joints(w)...); err != nil {
		return phase, count, Verdict{}, err
	}

	switch w {
	case PushUp:
		return r.pushUp(phase, count, frame)
	case Squat:
		return r.squat(phase, count, frame)
	}
	return phase, count, Verdict{}, fmt.Errorf("%w: %d", ErrUnknownWorkout, int(w))
}

func (r Rules) pushUp(phase Phase, count uint32, f pose.Frame) (Phase, uint32, Verdict, error) {
	shoulder := f.At(pose.LeftShoulder)
	elbow := pose.Angle(shoulder, f.At(pose.LeftElbow), f.At(pose.LeftWrist))
	hip := pose.Angle(shoulder, f.At(pose.LeftHip), f.At(pose.LeftKnee))

	hipOK := !r.StrictPushUp || hip > pushUpHipGate
	switch {
	case elbow < pushUpDownElbow && hipOK:
		if phase == Up {
			phase = Down
		}
	case elbow > pushUpUpElbow && hipOK:
		if phase == Down {
			phase = Up
			count++
		}
	}

	feedback := GoodForm
	switch {
	case hip < pushUpHipLow:
		feedback = HipsLow
	case hip > pushUpHipHigh:
		feedback = HipsHigh
	}

	angles := []pose.JointAngle{{Name: AngleElbow, Degrees: elbow}, {Name: AngleHip, Degrees: hip}}
	return phase, count, newVerdict(PushUp, feedback, angles), nil
}

func (r Rules) squat(phase Phase, count uint32, f pose.Frame) (Phase, uint32, Verdict, error) {
	hipPt, kneePt := f.At(pose.LeftHip), f.At(pose.LeftKnee)
	knee := pose.Angle(hipPt, kneePt, f.At(pose.LeftAnkle))
	hip := pose.Angle(f.At(pose.LeftShoulder), hipPt, kneePt)

	switch {
	case knee < squatDownKnee && hip < squatDownHip:
		if phase == Up {
			phase = Down
		}
	case knee > squatUpKnee && hip > squatUpHip:
		if phase == Down {
			phase = Up
			count++
		}
	}

	// Graded against the phase after the transition: only while still down
	// and rising out of the bottom.
	feedback := GoodForm
	if phase == Down && knee > squatRisingKnee && hip < squatChestHip {
		feedback = ChestNotUp
	}

	angles := []pose.JointAngle{{Name: AngleKnee, Degrees: knee}, {Name: AngleHip, Degrees: hip}}
	return phase, count, newVerdict(Squat, feedback, angles), nil
}
