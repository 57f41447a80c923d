package pose

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

// at places a landmark at distance r from origin along direction deg.
func at(origin Landmark, deg, r float64) Landmark {
	rad := deg * math.Pi / 180
	return Landmark{X: origin.X + r*math.Cos(rad), Y: origin.Y + r*math.Sin(rad)}
}

// TestAngleKnownValues verifies the directional angle for points placed at
// known directions around the vertex.
func TestAngleKnownValues(t *testing.T) {
	vertex := Landmark{X: 0.5, Y: 0.5}
	p1 := at(vertex, 0, 0.1)

	tests := []float64{0, 45, 90, 135, 170, 180, 195, 270, 359}
	for _, want := range tests {
		p3 := at(vertex, want, 0.1)
		got := Angle(p1, vertex, p3)
		if want == 0 && got > 359.999 {
			got -= 360
		}
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("Angle(dir %v) = %.6f, want %.6f", want, got, want)
		}
	}
}

// TestAngleOrderSensitive verifies that swapping the outer points mirrors the
// angle around 360 instead of returning the same value.
func TestAngleOrderSensitive(t *testing.T) {
	vertex := Landmark{X: 0.4, Y: 0.6}
	a := at(vertex, 10, 0.2)
	c := at(vertex, 80, 0.15)

	forward := Angle(a, vertex, c)
	backward := Angle(c, vertex, a)
	if math.Abs(forward-70) > 1e-6 {
		t.Errorf("forward = %.6f, want 70", forward)
	}
	if math.Abs(backward-290) > 1e-6 {
		t.Errorf("backward = %.6f, want 290", backward)
	}
	if forward == backward {
		t.Error("angle should depend on point order")
	}
	if math.Abs(forward+backward-360) > 1e-6 {
		t.Errorf("forward + backward = %.6f, want 360", forward+backward)
	}
}

// TestAngleRange verifies that results stay in [0, 360) across a sweep of
// directions, including the atan2 -π edge.
func TestAngleRange(t *testing.T) {
	vertex := Landmark{X: 0, Y: 0}
	for d1 := 0.0; d1 < 360; d1 += 15 {
		for d3 := 0.0; d3 < 360; d3 += 15 {
			got := Angle(at(vertex, d1, 1), vertex, at(vertex, d3, 1))
			if got < 0 || got >= 360 {
				t.Fatalf("Angle(%v, %v) = %v, out of [0, 360)", d1, d3, got)
			}
		}
	}

	// p1 on the negative x axis with y = -0, where atan2 returns -π
	got := Angle(Landmark{X: -1, Y: math.Copysign(0, -1)}, vertex, Landmark{X: -1, Y: 0})
	if got < 0 || got >= 360 {
		t.Errorf("edge angle = %v, out of [0, 360)", got)
	}
}

// TestAngleIdempotent verifies that repeated calls give identical results.
func TestAngleIdempotent(t *testing.T) {
	a := Landmark{X: 0.31, Y: 0.72}
	b := Landmark{X: 0.45, Y: 0.51}
	c := Landmark{X: 0.62, Y: 0.66}
	first := Angle(a, b, c)
	for i := 0; i < 5; i++ {
		if got := Angle(a, b, c); got != first {
			t.Fatalf("call %d = %v, want %v", i, got, first)
		}
	}
}

// TestFrameRequire verifies landmark presence and finiteness checks.
func TestFrameRequire(t *testing.T) {
	full := Frame{Landmarks: make([]Landmark, LandmarkCount)}
	if err := full.Require(LeftShoulder, LeftElbow, LeftWrist, LeftHip, LeftKnee, LeftAnkle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := Frame{}
	if err := empty.Require(LeftShoulder); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("empty frame err = %v, want ErrInvalidFrame", err)
	}

	short := Frame{Landmarks: make([]Landmark, 26)}
	err := short.Require(LeftHip, LeftKnee, LeftAnkle)
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("short frame err = %v, want ErrInvalidFrame", err)
	}
	if want := "left_ankle"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should name %s", err, want)
	}

	nan := Frame{Landmarks: make([]Landmark, LandmarkCount)}
	nan.Landmarks[LeftKnee].Y = math.NaN()
	if err := nan.Require(LeftKnee); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("NaN frame err = %v, want ErrInvalidFrame", err)
	}
}

// TestIndexString verifies the landmark names used in error messages.
func TestIndexString(t *testing.T) {
	if got := LeftShoulder.String(); got != "left_shoulder" {
		t.Errorf("LeftShoulder = %q", got)
	}
	if got := RightFootIndex.String(); got != "right_foot_index" {
		t.Errorf("RightFootIndex = %q", got)
	}
	if got := Index(40).String(); got != "landmark(40)" {
		t.Errorf("Index(40) = %q", got)
	}
	if int(LeftShoulder) != 11 || int(LeftElbow) != 13 || int(LeftWrist) != 15 ||
		int(LeftHip) != 23 || int(LeftKnee) != 25 || int(LeftAnkle) != 27 {
		t.Error("left-side indices do not match the 33-point body model")
	}
}

// TestLandmarkJSON verifies both the object and the compact array forms.
func TestLandmarkJSON(t *testing.T) {
	var f Frame
	in := `{"landmarks":[{"x":0.1,"y":0.2,"visibility":0.9},[0.3,0.4],[0.5,0.6,-0.1,0.8]]}`
	if err := json.Unmarshal([]byte(in), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Landmark{
		{X: 0.1, Y: 0.2, Visibility: 0.9},
		{X: 0.3, Y: 0.4},
		{X: 0.5, Y: 0.6, Z: -0.1, Visibility: 0.8},
	}
	if len(f.Landmarks) != len(want) {
		t.Fatalf("landmarks = %d, want %d", len(f.Landmarks), len(want))
	}
	for i := range want {
		if f.Landmarks[i] != want[i] {
			t.Errorf("landmark %d = %+v, want %+v", i, f.Landmarks[i], want[i])
		}
	}

	var l Landmark
	if err := json.Unmarshal([]byte(`[0.1]`), &l); err == nil {
		t.Error("a single value should be rejected")
	}
}
