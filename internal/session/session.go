// Package session owns the per-session rep state that the analyzer itself
// never holds: phase, counter, form score, speech cadence and heart rate.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
)

// DefaultFeedbackInterval is the minimum gap between two spoken corrections.
const DefaultFeedbackInterval = 2 * time.Second

// Options configures new sessions.
type Options struct {
	Rules            reps.Rules
	FeedbackInterval time.Duration
	Source           string
}

func (o Options) withDefaults() Options {
	if o.FeedbackInterval <= 0 {
		o.FeedbackInterval = DefaultFeedbackInterval
	}
	if o.Source == "" {
		o.Source = models.SourceLive
	}
	return o
}

// Update is the result of processing one frame.
type Update struct {
	SessionID    uuid.UUID    `json:"session_id"`
	Phase        reps.Phase   `json:"phase"`
	Reps         uint32       `json:"reps"`
	RepCompleted bool         `json:"rep_completed"`
	Verdict      reps.Verdict `json:"verdict"`
	Speak        bool         `json:"speak"`
	Score        int          `json:"score"`
}

// Session is one exercise session. All methods are safe for concurrent use.
type Session struct {
	ID        uuid.UUID
	UserID    int
	Workout   reps.Workout
	StartedAt time.Time

	opts Options

	mu         sync.Mutex
	phase      reps.Phase
	count      uint32
	correct    int
	analyzed   int
	invalid    int
	spokenOnce bool
	lastSpoken time.Time
	lastSeen   time.Time
	heartRate  []models.HeartRateRow
}

// New starts a session in the Up phase with zero reps.
func New(userID int, w reps.Workout, now time.Time, opts Options) *Session {
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Workout:   w,
		StartedAt: now,
		opts:      opts.withDefaults(),
		lastSeen:  now,
	}
}

// Process analyses one frame and advances the session. Invalid frames are
// counted and leave phase and counter untouched.
func (s *Session) Process(frame pose.Frame, now time.Time) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
	phase, count, verdict, err := s.opts.Rules.Analyze(s.phase, s.count, s.Workout, frame)
	if err != nil {
		s.invalid++
		return Update{}, err
	}

	u := Update{
		SessionID:    s.ID,
		Phase:        phase,
		Reps:         count,
		RepCompleted: count > s.count,
		Verdict:      verdict,
	}
	s.phase, s.count = phase, count

	s.analyzed++
	if verdict.Correct {
		s.correct++
	} else if !s.spokenOnce || now.Sub(s.lastSpoken) >= s.opts.FeedbackInterval {
		u.Speak = true
		s.spokenOnce = true
		s.lastSpoken = now
	}
	u.Score = s.scoreLocked()
	return u, nil
}

// scoreLocked is the integer mean of 100 per correct frame and 0 per
// incorrect frame. A session with no analysed frame scores 100.
func (s *Session) scoreLocked() int {
	if s.analyzed == 0 {
		return 100
	}
	return s.correct * 100 / s.analyzed
}

// RecordHeartRate stores a watch sample. Non-positive values are ignored and
// reported as false.
func (s *Session) RecordHeartRate(bpm int, at time.Time) bool {
	if bpm <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartRate = append(s.heartRate, models.HeartRateRow{
		Time:      at,
		SessionID: s.ID,
		UserID:    s.UserID,
		BPM:       bpm,
	})
	return true
}

// HeartRate returns a copy of the recorded samples.
func (s *Session) HeartRate() []models.HeartRateRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HeartRateRow, len(s.heartRate))
	copy(out, s.heartRate)
	return out
}

// State returns the current phase and rep count.
func (s *Session) State() (reps.Phase, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.count
}

// Score returns the running form score.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreLocked()
}

// LastSeen returns the time of the last frame, or the start time.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Summary builds the storage row for the session ending at end.
func (s *Session) Summary(end time.Time) models.SessionRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := models.SessionRow{
		ID:             s.ID,
		UserID:         s.UserID,
		StartedAt:      s.StartedAt,
		EndedAt:        end,
		ExerciseType:   s.Workout.DisplayName(),
		Reps:           int(s.count),
		Score:          s.scoreLocked(),
		FramesAnalyzed: s.analyzed,
		FramesInvalid:  s.invalid,
		Source:         s.opts.Source,
	}

	if n := len(s.heartRate); n > 0 {
		sum, lo, hi := 0, s.heartRate[0].BPM, s.heartRate[0].BPM
		for _, hr := range s.heartRate {
			sum += hr.BPM
			lo = min(lo, hr.BPM)
			hi = max(hi, hr.BPM)
		}
		avg := float64(sum) / float64(n)
		minF, maxF := float64(lo), float64(hi)
		row.AvgHeartRate = &avg
		row.MinHeartRate = &minF
		row.MaxHeartRate = &maxF
	}
	return row
}
