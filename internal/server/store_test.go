package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/ingest/history"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
	"github.com/claude/repcoach/internal/storage"
)

const testAPIKey = "test-key"

// t0 is a Monday; day of year 61 selects "Morning Burst" (20 push-ups).
var t0 = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]int
	sessions   map[uuid.UUID]models.SessionRow
	heartRate  []models.HeartRateRow
	goals      map[int]int
	challenges map[string]models.ChallengeCompletionRow
	importLogs []storage.ImportLog
	userCalls  int
	pingErr    error
	insertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[string]int{},
		sessions:   map[uuid.UUID]models.SessionRow{},
		goals:      map[int]int{},
		challenges: map[string]models.ChallengeCompletionRow{},
	}
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 1
	f.users[login] = id
	return id, nil
}

func (f *fakeStore) InsertSession(_ context.Context, row models.SessionRow) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, ok := f.sessions[row.ID]; ok {
		return false, nil
	}
	f.sessions[row.ID] = row
	return true, nil
}

func (f *fakeStore) InsertSessionHeartRate(_ context.Context, rows []models.HeartRateRow) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartRate = append(f.heartRate, rows...)
	return int64(len(rows)), nil
}

func (f *fakeStore) QuerySessions(_ context.Context, flt storage.SessionFilter, userID int) ([]models.SessionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SessionRow
	for _, row := range f.sessions {
		if row.UserID != userID {
			continue
		}
		if flt.ExerciseType != "" && !strings.EqualFold(row.ExerciseType, flt.ExerciseType) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID, userID int) (*storage.SessionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sessions[id]
	if !ok || row.UserID != userID {
		return nil, storage.ErrNotFound
	}
	d := &storage.SessionDetail{SessionRow: row}
	for _, hr := range f.heartRate {
		if hr.SessionID == id {
			d.HeartRate = append(d.HeartRate, hr)
		}
	}
	return d, nil
}

func (f *fakeStore) RepsBetween(_ context.Context, start, end time.Time, exerciseType string, userID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, row := range f.sessions {
		if row.UserID != userID || row.StartedAt.Before(start) || !row.StartedAt.Before(end) {
			continue
		}
		if exerciseType != "" && row.ExerciseType != exerciseType {
			continue
		}
		total += row.Reps
	}
	return total, nil
}

func (f *fakeStore) GetWeeklyGoal(_ context.Context, userID, def int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.goals[userID]; ok {
		return g, nil
	}
	return def, nil
}

func (f *fakeStore) SetWeeklyGoal(_ context.Context, userID, goal int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goals[userID] = goal
	return nil
}

func challengeKey(userID int, day time.Time) string {
	return fmt.Sprintf("%d/%s", userID, day.Format("2006-01-02"))
}

func (f *fakeStore) MarkChallengeCompleted(_ context.Context, row models.ChallengeCompletionRow) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeKey(row.UserID, row.Day)
	if _, ok := f.challenges[key]; ok {
		return false, nil
	}
	f.challenges[key] = row
	return true, nil
}

func (f *fakeStore) IsChallengeCompleted(_ context.Context, userID int, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.challenges[challengeKey(userID, day)]
	return ok, nil
}

func (f *fakeStore) GetExerciseSummary(_ context.Context, _, _ time.Time, userID int) ([]storage.ExerciseSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byType := map[string]*storage.ExerciseSummary{}
	for _, row := range f.sessions {
		if row.UserID != userID {
			continue
		}
		s, ok := byType[row.ExerciseType]
		if !ok {
			s = &storage.ExerciseSummary{ExerciseType: row.ExerciseType}
			byType[row.ExerciseType] = s
		}
		s.Sessions++
		s.TotalReps += row.Reps
	}
	var out []storage.ExerciseSummary
	for _, s := range byType {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) GetPeriodSummary(_ context.Context, _, _ time.Time, bucket string, _ int) ([]storage.PeriodSummary, error) {
	return []storage.PeriodSummary{{Period: bucket}}, nil
}

func (f *fakeStore) GetDataStats(_ context.Context, userID int) (*storage.DataStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &storage.DataStats{}
	for _, row := range f.sessions {
		if row.UserID == userID {
			stats.TotalSessions++
			stats.TotalReps += int64(row.Reps)
		}
	}
	return stats, nil
}

func (f *fakeStore) InsertImportLog(_ context.Context, log storage.ImportLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importLogs = append(f.importLogs, log)
	return int64(len(f.importLogs)), nil
}

func (f *fakeStore) QueryImportLogs(_ context.Context, userID, _ int) ([]storage.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ImportLog
	for _, l := range f.importLogs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) importLogCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.importLogs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a Server over a fake store with a clock fixed at t0.
func newTestServer(t *testing.T) (*Server, *fakeStore, *metrics.Manager) {
	t.Helper()
	store := newFakeStore()
	m := metrics.NewTestManager()
	log := discardLogger()
	srv := New(
		store,
		session.NewManager(session.Options{}, time.Minute),
		history.NewProvider(store, time.UTC, log),
		Options{APIKey: testAPIKey, DefaultUser: "local", Location: time.UTC},
		m,
		log,
	)
	srv.now = func() time.Time { return t0 }
	return srv, store, m
}
