package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose/posetest"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/storage"
)

// fakeDS is an in-memory DataSource keyed by user.
type fakeDS struct {
	sessions   []models.SessionRow
	goals      map[int]int
	challenges map[string]bool
	lastFilter storage.SessionFilter
}

func (f *fakeDS) QuerySessions(_ context.Context, filter storage.SessionFilter, uid int) ([]models.SessionRow, error) {
	f.lastFilter = filter
	var out []models.SessionRow
	for _, s := range f.sessions {
		if s.UserID != uid {
			continue
		}
		if filter.ExerciseType != "" && s.ExerciseType != filter.ExerciseType {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeDS) GetSession(_ context.Context, id uuid.UUID, uid int) (*storage.SessionDetail, error) {
	for _, s := range f.sessions {
		if s.ID == id && s.UserID == uid {
			return &storage.SessionDetail{SessionRow: s}, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeDS) RepsBetween(_ context.Context, start, end time.Time, exerciseType string, uid int) (int, error) {
	total := 0
	for _, s := range f.sessions {
		if s.UserID == uid && !s.StartedAt.Before(start) && s.StartedAt.Before(end) &&
			(exerciseType == "" || s.ExerciseType == exerciseType) {
			total += s.Reps
		}
	}
	return total, nil
}

func (f *fakeDS) GetWeeklyGoal(_ context.Context, uid, def int) (int, error) {
	if g, ok := f.goals[uid]; ok {
		return g, nil
	}
	return def, nil
}

func (f *fakeDS) IsChallengeCompleted(_ context.Context, uid int, day time.Time) (bool, error) {
	return f.challenges[challengeKey(uid, day)], nil
}

func (f *fakeDS) GetExerciseSummary(context.Context, time.Time, time.Time, int) ([]storage.ExerciseSummary, error) {
	return []storage.ExerciseSummary{{ExerciseType: "Push-ups", Sessions: 2, TotalReps: 40}}, nil
}

func (f *fakeDS) GetPeriodSummary(_ context.Context, _, _ time.Time, bucket string, _ int) ([]storage.PeriodSummary, error) {
	return []storage.PeriodSummary{{Period: bucket, TotalReps: 40}}, nil
}

func (f *fakeDS) GetDataStats(context.Context, int) (*storage.DataStats, error) {
	return &storage.DataStats{TotalSessions: int64(len(f.sessions))}, nil
}

func challengeKey(uid int, day time.Time) string {
	return fmt.Sprintf("%d/%s", uid, day.Format("2006-01-02"))
}

var t0 = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

func newTestHandlers(ds *fakeDS) *handlers {
	return &handlers{
		ds:   ds,
		opts: Options{Location: time.UTC, WeeklyGoalDefault: 200},
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:  func() time.Time { return t0 },
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultText returns the text content of a tool result.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil {
		t.Fatal("nil result")
	}
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("result has no text content")
	return ""
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(t, res)), &v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return v
}

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestDefaultTimeRange verifies time range defaults (last 7 days) and parsing.
func TestDefaultTimeRange(t *testing.T) {
	start, end, err := defaultTimeRange("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := end.Sub(start)
	if diff.Hours() < 167 || diff.Hours() > 169 {
		t.Errorf("default range = %.0f hours, want ~168", diff.Hours())
	}

	start, end, err = defaultTimeRange("2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Year() != 2024 || start.Month() != 1 || start.Day() != 1 {
		t.Errorf("start = %v, want 2024-01-01", start)
	}
	if end.Year() != 2024 || end.Month() != 1 || end.Day() != 31 {
		t.Errorf("end = %v, want 2024-01-31", end)
	}

	start, _, err = defaultTimeRange("2024-06-15T10:30:00Z", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	if _, _, err = defaultTimeRange("not-a-date", ""); err == nil {
		t.Error("expected error for invalid date")
	}
}

// TestTimeRangeDays verifies the missing start is counted back from end.
func TestTimeRangeDays(t *testing.T) {
	start, end, err := timeRange("", "2026-03-31", 30)
	if err != nil {
		t.Fatal(err)
	}
	if got := end.Sub(start); got != 30*24*time.Hour {
		t.Errorf("range = %v, want 720h", got)
	}
}

// TestGetSessionsScopedToUser verifies the exercise filter is translated to
// the stored display name and only the caller's sessions are returned.
func TestGetSessionsScopedToUser(t *testing.T) {
	ds := &fakeDS{sessions: []models.SessionRow{
		{ID: uuid.New(), UserID: 1, ExerciseType: "Push-ups", Reps: 10, StartedAt: t0},
		{ID: uuid.New(), UserID: 1, ExerciseType: "Squats", Reps: 12, StartedAt: t0},
		{ID: uuid.New(), UserID: 2, ExerciseType: "Push-ups", Reps: 30, StartedAt: t0},
	}}
	h := newTestHandlers(ds)

	res, err := h.getSessions(context.Background(), callRequest(map[string]any{"exercise": "PUSH_UP", "limit": 5}))
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeResult[[]models.SessionRow](t, res)
	if len(rows) != 1 || rows[0].Reps != 10 {
		t.Errorf("rows = %+v, want the single user 1 push-up session", rows)
	}
	if ds.lastFilter.ExerciseType != "Push-ups" {
		t.Errorf("filter exercise = %q, want Push-ups", ds.lastFilter.ExerciseType)
	}
	if ds.lastFilter.Limit != 5 {
		t.Errorf("filter limit = %d, want 5", ds.lastFilter.Limit)
	}

	res, _ = h.getSessions(WithUserID(context.Background(), 2), callRequest(nil))
	rows = decodeResult[[]models.SessionRow](t, res)
	if len(rows) != 1 || rows[0].Reps != 30 {
		t.Errorf("user 2 rows = %+v", rows)
	}
}

// TestGetSessionsInvalidArgs verifies bad arguments become tool errors.
func TestGetSessionsInvalidArgs(t *testing.T) {
	h := newTestHandlers(&fakeDS{})
	for _, args := range []map[string]any{
		{"start": "yesterday"},
		{"exercise": "LUNGE"},
	} {
		res, err := h.getSessions(context.Background(), callRequest(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}
}

// TestGetSession verifies lookup by ID and the not-found error.
func TestGetSession(t *testing.T) {
	id := uuid.New()
	ds := &fakeDS{sessions: []models.SessionRow{{ID: id, UserID: 1, ExerciseType: "Squats", Reps: 8}}}
	h := newTestHandlers(ds)

	res, _ := h.getSession(context.Background(), callRequest(map[string]any{"id": id.String()}))
	detail := decodeResult[storage.SessionDetail](t, res)
	if detail.Reps != 8 {
		t.Errorf("reps = %d, want 8", detail.Reps)
	}

	res, _ = h.getSession(WithUserID(context.Background(), 2), callRequest(map[string]any{"id": id.String()}))
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Errorf("other user's session: got %q", resultText(t, res))
	}

	res, _ = h.getSession(context.Background(), callRequest(nil))
	if !res.IsError {
		t.Error("missing id: expected tool error")
	}
}

// TestGetWeeklyProgress verifies reps are summed over Monday to Sunday
// against the stored goal.
func TestGetWeeklyProgress(t *testing.T) {
	ds := &fakeDS{
		goals: map[int]int{1: 50},
		sessions: []models.SessionRow{
			{UserID: 1, Reps: 20, StartedAt: t0},
			{UserID: 1, Reps: 15, StartedAt: t0.AddDate(0, 0, 6)},
			{UserID: 1, Reps: 99, StartedAt: t0.AddDate(0, 0, -1)}, // previous Sunday
		},
	}
	h := newTestHandlers(ds)

	res, _ := h.getWeeklyProgress(context.Background(), callRequest(map[string]any{"date": "2026-03-04"}))
	p := decodeResult[struct {
		Reps    int  `json:"reps"`
		Goal    int  `json:"goal"`
		Percent int  `json:"percent"`
		Reached bool `json:"reached"`
	}](t, res)
	if p.Reps != 35 || p.Goal != 50 || p.Percent != 70 || p.Reached {
		t.Errorf("progress = %+v, want 35/50 70%% not reached", p)
	}
}

// TestGetDailyChallenge verifies the rotation and completion flag.
func TestGetDailyChallenge(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	ds := &fakeDS{challenges: map[string]bool{challengeKey(1, day): true}}
	h := newTestHandlers(ds)

	res, _ := h.getDailyChallenge(context.Background(), callRequest(nil))
	got := decodeResult[struct {
		Date      string `json:"date"`
		Completed bool   `json:"completed"`
		Challenge struct {
			Title   string `json:"title"`
			RepGoal int    `json:"rep_goal"`
		} `json:"challenge"`
	}](t, res)
	if got.Date != "2026-03-02" || !got.Completed {
		t.Errorf("got %+v, want 2026-03-02 completed", got)
	}
	if got.Challenge.Title != "Morning Burst" || got.Challenge.RepGoal != 20 {
		t.Errorf("challenge = %+v, want Morning Burst (20)", got.Challenge)
	}

	res, _ = h.getDailyChallenge(context.Background(), callRequest(map[string]any{"date": "2026-03-01"}))
	got = decodeResult[struct {
		Date      string `json:"date"`
		Completed bool   `json:"completed"`
		Challenge struct {
			Title   string `json:"title"`
			RepGoal int    `json:"rep_goal"`
		} `json:"challenge"`
	}](t, res)
	if got.Completed || got.Challenge.Title != "Quick 15" {
		t.Errorf("2026-03-01 = %+v, want Quick 15 not completed", got)
	}
}

// TestSummaryTools verifies the summary and stats tools pass data through and
// default the period bucket to a week.
func TestSummaryTools(t *testing.T) {
	ds := &fakeDS{sessions: []models.SessionRow{{UserID: 1}, {UserID: 1}}}
	h := newTestHandlers(ds)
	ctx := context.Background()

	res, _ := h.getExerciseSummary(ctx, callRequest(nil))
	summary := decodeResult[[]storage.ExerciseSummary](t, res)
	if len(summary) != 1 || summary[0].TotalReps != 40 {
		t.Errorf("summary = %+v", summary)
	}

	res, _ = h.getPeriodSummary(ctx, callRequest(nil))
	periods := decodeResult[[]storage.PeriodSummary](t, res)
	if len(periods) != 1 || periods[0].Period != "1 week" {
		t.Errorf("periods = %+v, want default bucket 1 week", periods)
	}

	res, _ = h.getDataStats(ctx, callRequest(nil))
	stats := decodeResult[storage.DataStats](t, res)
	if stats.TotalSessions != 2 {
		t.Errorf("total sessions = %d, want 2", stats.TotalSessions)
	}
}

// landmarkArg converts a frame into the decoded-JSON shape a client sends.
func landmarkArg(t *testing.T, landmarks any) any {
	t.Helper()
	data, err := json.Marshal(landmarks)
	if err != nil {
		t.Fatal(err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	return v
}

// TestAnalyzeFrame verifies a down then up frame completes one rep and the
// returned prompt names the measured angles.
func TestAnalyzeFrame(t *testing.T) {
	h := newTestHandlers(&fakeDS{})
	ctx := context.Background()

	res, err := h.analyzeFrame(ctx, callRequest(map[string]any{
		"exercise":  "PUSH_UP",
		"landmarks": landmarkArg(t, posetest.PushUp(70, 160).Landmarks),
	}))
	if err != nil {
		t.Fatal(err)
	}
	down := decodeResult[frameAnalysis](t, res)
	if down.Phase != reps.Down || down.Reps != 0 || down.RepCompleted {
		t.Errorf("down frame = %+v, want phase down, 0 reps", down)
	}

	res, _ = h.analyzeFrame(ctx, callRequest(map[string]any{
		"exercise":  "PUSH_UP",
		"landmarks": landmarkArg(t, posetest.PushUp(170, 160).Landmarks),
		"phase":     "down",
		"reps":      0,
	}))
	up := decodeResult[frameAnalysis](t, res)
	if up.Phase != reps.Up || up.Reps != 1 || !up.RepCompleted {
		t.Errorf("up frame = %+v, want phase up, 1 rep", up)
	}
	if !up.Verdict.Correct {
		t.Errorf("verdict = %+v, want correct", up.Verdict)
	}
	if !strings.HasPrefix(up.Prompt, "User is doing a push-up. Elbow angle is ") {
		t.Errorf("prompt = %q", up.Prompt)
	}
}

// TestAnalyzeFrameErrors verifies argument problems become tool errors.
func TestAnalyzeFrameErrors(t *testing.T) {
	h := newTestHandlers(&fakeDS{})
	good := landmarkArg(t, posetest.PushUp(70, 160).Landmarks)

	for name, args := range map[string]map[string]any{
		"missing exercise":  {"landmarks": good},
		"unknown exercise":  {"exercise": "LUNGE", "landmarks": good},
		"missing landmarks": {"exercise": "SQUAT"},
		"too few landmarks": {"exercise": "SQUAT", "landmarks": []any{[]any{0.1, 0.2}}},
		"bad phase":         {"exercise": "PUSH_UP", "landmarks": good, "phase": "sideways"},
		"negative reps":     {"exercise": "PUSH_UP", "landmarks": good, "reps": -1},
		"reps past counter": {"exercise": "PUSH_UP", "landmarks": good, "reps": float64(1 << 32)},
		"reps at counter":   {"exercise": "PUSH_UP", "landmarks": good, "reps": float64(math.MaxUint32)},
	} {
		res, err := h.analyzeFrame(context.Background(), callRequest(args))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !res.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
}

// TestParseAngles verifies the prompt argument format.
func TestParseAngles(t *testing.T) {
	angles, err := parseAngles("Elbow=92.7, Hip = 170")
	if err != nil {
		t.Fatal(err)
	}
	if len(angles) != 2 || angles[0].Name != "Elbow" || angles[1].Degrees != 170 {
		t.Errorf("angles = %+v", angles)
	}

	for _, bad := range []string{"", "Elbow", "Elbow=abc"} {
		if _, err := parseAngles(bad); err == nil {
			t.Errorf("parseAngles(%q): expected error", bad)
		}
	}
}

// TestFormFeedbackPrompt verifies the prompt renders the coaching request.
func TestFormFeedbackPrompt(t *testing.T) {
	h := newTestHandlers(&fakeDS{})
	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"exercise": "SQUAT", "angles": "Knee=95.9, Hip=140"}

	res, err := h.formFeedback(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Messages[0].Content)
	}
	want := "User is doing a squat. Knee angle is 95 degrees. Hip angle is 140 degrees. " +
		"Provide short, encouraging, actionable feedback. If form is good, say 'Great form!'."
	if tc.Text != want {
		t.Errorf("prompt = %q, want %q", tc.Text, want)
	}

	req.Params.Arguments["exercise"] = "LUNGE"
	if _, err := h.formFeedback(context.Background(), req); err == nil {
		t.Error("unknown exercise: expected error")
	}
}

// TestTodayResource verifies the today resource combines progress,
// challenge and today's sessions.
func TestTodayResource(t *testing.T) {
	ds := &fakeDS{sessions: []models.SessionRow{{UserID: 1, Reps: 25, ExerciseType: "Push-ups", StartedAt: t0}}}
	h := newTestHandlers(ds)

	var req mcp.ReadResourceRequest
	req.Params.URI = "repcoach://today"
	contents, err := h.today(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content = %T", contents[0])
	}
	var got struct {
		Date           string `json:"date"`
		WeeklyProgress struct {
			Reps int `json:"reps"`
			Goal int `json:"goal"`
		} `json:"weekly_progress"`
		TodaysSessions []models.SessionRow `json:"todays_sessions"`
	}
	if err := json.Unmarshal([]byte(text.Text), &got); err != nil {
		t.Fatal(err)
	}
	if got.Date != "2026-03-02" || got.WeeklyProgress.Reps != 25 || got.WeeklyProgress.Goal != 200 {
		t.Errorf("today = %+v", got)
	}
	if len(got.TodaysSessions) != 1 {
		t.Errorf("todays sessions = %d, want 1", len(got.TodaysSessions))
	}
}
