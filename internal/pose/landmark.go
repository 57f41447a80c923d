// Package pose holds body-landmark frames as delivered by a pose-detection
// pipeline and the joint-angle math the rep analyzer runs on them.
package pose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFrame is returned when a frame lacks a required landmark or
// carries a non-finite coordinate.
var ErrInvalidFrame = errors.New("invalid frame")

// LandmarkCount is the size of the body model (33 points).
const LandmarkCount = 33

// Index identifies a landmark position in the 33-point body model.
type Index int

const (
	Nose Index = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

var indexNames = [LandmarkCount]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_pinky", "right_pinky",
	"left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee",
	"left_ankle", "right_ankle", "left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

func (i Index) String() string {
	if i < 0 || int(i) >= LandmarkCount {
		return fmt.Sprintf("landmark(%d)", int(i))
	}
	return indexNames[i]
}

// Landmark is a normalized image-plane position. Z and Visibility are carried
// through from the detector but not used by the analyzer.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// UnmarshalJSON accepts the object form as well as the compact array form
// [x, y], [x, y, z] or [x, y, z, visibility] used by recordings.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v []float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if len(v) < 2 || len(v) > 4 {
			return fmt.Errorf("landmark array has %d values, want 2 to 4", len(v))
		}
		*l = Landmark{X: v[0], Y: v[1]}
		if len(v) > 2 {
			l.Z = v[2]
		}
		if len(v) > 3 {
			l.Visibility = v[3]
		}
		return nil
	}

	type plain Landmark
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Landmark(p)
	return nil
}

// Frame is the set of landmarks for one detected person at one instant,
// indexed by Index.
type Frame struct {
	Landmarks []Landmark `json:"landmarks"`
}

// At returns the landmark at idx. Callers must Require idx first.
func (f Frame) At(idx Index) Landmark {
	return f.Landmarks[idx]
}

// Require checks that every index is present with finite x/y coordinates.
func (f Frame) Require(indices ...Index) error {
	if len(f.Landmarks) == 0 {
		return fmt.Errorf("%w: no landmarks", ErrInvalidFrame)
	}
	for _, idx := range indices {
		if idx < 0 || int(idx) >= len(f.Landmarks) {
			return fmt.Errorf("%w: %s missing (have %d landmarks)", ErrInvalidFrame, idx, len(f.Landmarks))
		}
		lm := f.Landmarks[idx]
		if !finite(lm.X) || !finite(lm.Y) {
			return fmt.Errorf("%w: %s has non-finite coordinates", ErrInvalidFrame, idx)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
