package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/repcoach/internal/pose"
)

// Pipeline feeds frames to a Session through a single consumer. It holds at
// most one pending frame: a newer frame replaces an unconsumed older one.
type Pipeline struct {
	sess *Session
	now  func() time.Time

	submitMu  sync.Mutex
	frames    chan pose.Frame
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewPipeline creates a pipeline for s.
func NewPipeline(s *Session) *Pipeline {
	return &Pipeline{
		sess:   s,
		now:    time.Now,
		frames: make(chan pose.Frame, 1),
		done:   make(chan struct{}),
	}
}

// Submit queues f without blocking. It reports whether a pending frame was
// replaced.
func (p *Pipeline) Submit(f pose.Frame) bool {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	select {
	case p.frames <- f:
		return false
	default:
	}

	replaced := false
	select {
	case <-p.frames:
		replaced = true
		p.dropped.Add(1)
	default:
	}
	// Only Submit sends and submitMu is held, so the slot is free now.
	p.frames <- f
	return replaced
}

// Dropped returns the number of frames replaced before being processed.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Run processes frames until ctx is cancelled or Close is called, passing
// every result to deliver. It returns ctx.Err() on cancellation and nil on
// Close.
func (p *Pipeline) Run(ctx context.Context, deliver func(Update, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case f := <-p.frames:
			u, err := p.sess.Process(f, p.now())
			deliver(u, err)
		}
	}
}

// Close stops Run. Pending frames are discarded.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
