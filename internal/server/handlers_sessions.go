package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/session"
)

type startSessionRequest struct {
	Exercise string `json:"exercise"`
	Source   string `json:"source,omitempty"`
}

type startSessionResponse struct {
	ID        uuid.UUID    `json:"id"`
	Exercise  reps.Workout `json:"exercise"`
	StartedAt time.Time    `json:"started_at"`
}

type heartRateRequest struct {
	BPM  int        `json:"bpm"`
	Time *time.Time `json:"time,omitempty"`
}

// ChallengeResult reports how a finished session relates to the day's
// challenge.
type ChallengeResult struct {
	coach.Challenge
	Met            bool `json:"met"`
	NewlyCompleted bool `json:"newly_completed"`
}

// FinishResponse is returned when a session ends.
type FinishResponse struct {
	Session   models.SessionRow `json:"session"`
	Challenge ChallengeResult   `json:"challenge"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	workout, err := reps.ParseWorkout(req.Exercise)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	switch req.Source {
	case "", models.SourceLive, models.SourceReplay:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown source %q", req.Source)})
		return
	}

	sess := s.sessions.StartFrom(uid, workout, req.Source, s.now())
	s.setActiveGauge()
	s.log.Info("session started", "session_id", sess.ID, "user_id", uid, "exercise", workout)

	writeJSON(w, http.StatusCreated, startSessionResponse{
		ID:        sess.ID,
		Exercise:  workout,
		StartedAt: sess.StartedAt,
	})
}

// lookupSession resolves the {id} URL parameter to an active session owned
// by the caller, writing 400/404 on failure.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return nil, false
	}
	sess, ok := s.sessions.Get(id)
	if !ok || sess.UserID != uid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var frame pose.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	u, err := sess.Process(frame, s.now())
	s.observe(sess, u, err)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// observe records frame metrics for one processed frame.
func (s *Server) observe(sess *session.Session, u session.Update, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		if errors.Is(err, pose.ErrInvalidFrame) {
			s.metrics.CounterFramesInvalid.Inc()
		}
		return
	}
	exercise := sess.Workout.String()
	s.metrics.CounterFrames.WithLabelValues(exercise).Inc()
	if u.RepCompleted {
		s.metrics.CounterReps.WithLabelValues(exercise).Inc()
	}
	if !u.Verdict.Correct {
		s.metrics.CounterFormFaults.WithLabelValues(string(u.Verdict.Feedback)).Inc()
	}
}

func (s *Server) handleHeartRate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req heartRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	at := s.now()
	if req.Time != nil {
		at = *req.Time
	}
	if !sess.RecordHeartRate(req.BPM, at) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bpm must be positive"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	// Claimed before storing so the reaper cannot store it too; restored on
	// failure so the client can retry.
	if _, ok := s.sessions.Finish(sess.ID); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	row := sess.Summary(s.now())
	resp, err := s.saveSession(r.Context(), sess, row)
	if err != nil {
		s.sessions.Restore(sess)
		s.log.Error("storing session", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.setActiveGauge()
	s.log.Info("session finished",
		"session_id", sess.ID,
		"exercise", sess.Workout,
		"reps", row.Reps,
		"score", row.Score,
		"challenge_met", resp.Challenge.Met,
	)
	writeJSON(w, http.StatusOK, resp)
}

// saveSession stores a finished session with its heart rate and records the
// day's challenge when the session meets it.
func (s *Server) saveSession(ctx context.Context, sess *session.Session, row models.SessionRow) (*FinishResponse, error) {
	if _, err := s.db.InsertSession(ctx, row); err != nil {
		return nil, err
	}
	if hr := sess.HeartRate(); len(hr) > 0 {
		if _, err := s.db.InsertSessionHeartRate(ctx, hr); err != nil {
			return nil, err
		}
	}
	if s.metrics != nil {
		s.metrics.CounterSessionsFinished.WithLabelValues(sess.Workout.String()).Inc()
	}

	local := row.EndedAt.In(s.opts.Location)
	ch := coach.DailyChallenge(local)
	resp := &FinishResponse{Session: row, Challenge: ChallengeResult{Challenge: ch}}
	if !ch.CompletedBy(row.ExerciseType, row.Reps) {
		return resp, nil
	}
	resp.Challenge.Met = true
	newly, err := s.db.MarkChallengeCompleted(ctx, models.ChallengeCompletionRow{
		UserID:    row.UserID,
		Day:       coach.Day(local),
		Title:     ch.Title,
		SessionID: row.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("recording challenge: %w", err)
	}
	resp.Challenge.NewlyCompleted = newly
	return resp, nil
}
