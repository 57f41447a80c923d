// Package posetest builds synthetic landmark frames with chosen joint angles.
package posetest

import (
	"math"

	"github.com/claude/repcoach/internal/pose"
)

const arm = 0.1

func toward(from pose.Landmark, deg, r float64) pose.Landmark {
	rad := deg * math.Pi / 180
	return pose.Landmark{X: from.X + r*math.Cos(rad), Y: from.Y + r*math.Sin(rad), Visibility: 1}
}

func blank() pose.Frame {
	lms := make([]pose.Landmark, pose.LandmarkCount)
	for i := range lms {
		lms[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	}
	return pose.Frame{Landmarks: lms}
}

// PushUp returns a frame whose push-up elbow angle (shoulder, elbow, wrist)
// and hip angle (shoulder, hip, knee) equal the given degrees.
func PushUp(elbowDeg, hipDeg float64) pose.Frame {
	f := blank()
	shoulder := pose.Landmark{X: 0.6, Y: 0.5, Visibility: 1}
	elbow := pose.Landmark{X: shoulder.X - arm, Y: shoulder.Y, Visibility: 1}
	hip := pose.Landmark{X: shoulder.X - 2*arm, Y: shoulder.Y, Visibility: 1}

	f.Landmarks[pose.LeftShoulder] = shoulder
	f.Landmarks[pose.LeftElbow] = elbow
	f.Landmarks[pose.LeftWrist] = toward(elbow, elbowDeg, arm)
	f.Landmarks[pose.LeftHip] = hip
	f.Landmarks[pose.LeftKnee] = toward(hip, hipDeg, arm)
	return f
}

// Squat returns a frame whose squat knee angle (hip, knee, ankle) and hip
// angle (shoulder, hip, knee) equal the given degrees.
func Squat(kneeDeg, hipDeg float64) pose.Frame {
	f := blank()
	hip := pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	knee := toward(hip, hipDeg, arm)

	f.Landmarks[pose.LeftShoulder] = toward(hip, 0, arm)
	f.Landmarks[pose.LeftHip] = hip
	f.Landmarks[pose.LeftKnee] = knee
	f.Landmarks[pose.LeftAnkle] = toward(knee, hipDeg+180+kneeDeg, arm)
	return f
}
