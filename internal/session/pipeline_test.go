package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/pose/posetest"
	"github.com/claude/repcoach/internal/reps"
)

// TestPipelineKeepsLatest verifies that frames submitted while the consumer
// is busy collapse to the newest one.
func TestPipelineKeepsLatest(t *testing.T) {
	s := New(1, reps.PushUp, t0, Options{})
	p := NewPipeline(s)

	if p.Submit(posetest.PushUp(170, 160)) {
		t.Error("first submit should not replace anything")
	}
	if !p.Submit(posetest.PushUp(175, 160)) {
		t.Error("second submit should replace the pending frame")
	}
	if !p.Submit(posetest.PushUp(70, 160)) {
		t.Error("third submit should replace the pending frame")
	}
	if got := p.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var got []Update
	err := p.Run(ctx, func(u Update, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got = append(got, u)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
	if len(got) != 1 {
		t.Fatalf("delivered %d updates, want 1", len(got))
	}
	if got[0].Phase != reps.Down {
		t.Errorf("phase = %v, want down (only the newest frame is processed)", got[0].Phase)
	}
}

// TestPipelineInOrder verifies that paced frames are all processed, in order.
func TestPipelineInOrder(t *testing.T) {
	s := New(1, reps.PushUp, t0, Options{})
	p := NewPipeline(s)
	updates := make(chan Update, 8)

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), func(u Update, err error) {
			if err == nil {
				updates <- u
			}
		})
	}()

	for _, f := range []pose.Frame{
		posetest.PushUp(170, 160),
		posetest.PushUp(70, 160),
		posetest.PushUp(170, 160),
		posetest.PushUp(70, 160),
		posetest.PushUp(170, 160),
	} {
		p.Submit(f)
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for update")
		}
	}

	p.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run err = %v, want nil after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if _, count := s.State(); count != 2 {
		t.Errorf("reps = %d, want 2", count)
	}
	if p.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", p.Dropped())
	}
}

// TestPipelineDeliversErrors verifies invalid frames reach the callback as
// errors.
func TestPipelineDeliversErrors(t *testing.T) {
	p := NewPipeline(New(1, reps.Squat, t0, Options{}))
	p.Submit(pose.Frame{})

	ctx, cancel := context.WithCancel(context.Background())
	var gotErr error
	p.Run(ctx, func(_ Update, err error) {
		gotErr = err
		cancel()
	})
	if !errors.Is(gotErr, pose.ErrInvalidFrame) {
		t.Errorf("err = %v, want ErrInvalidFrame", gotErr)
	}
}

// TestPipelineCloseIdempotent verifies Close can be called more than once and
// stops an idle Run.
func TestPipelineCloseIdempotent(t *testing.T) {
	p := NewPipeline(New(1, reps.PushUp, t0, Options{}))
	p.Close()
	p.Close()
	if err := p.Run(context.Background(), func(Update, error) {}); err != nil {
		t.Errorf("Run err = %v, want nil", err)
	}
}
