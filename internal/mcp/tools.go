package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/storage"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	return timeRange(startStr, endStr, 7)
}

// timeRange parses start/end; a missing end is now and a missing start is
// days before end.
func timeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// dayParam returns the calendar day named by a YYYY-MM-DD parameter, or
// today, in loc.
func (h *handlers) dayParam(s string) (time.Time, error) {
	if s == "" {
		return coach.Day(h.now().In(h.opts.Location)), nil
	}
	return time.ParseInLocation("2006-01-02", s, h.opts.Location)
}

// --- Tool definitions ---

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List finished exercise sessions, newest first. Each session has the exercise, rep count, form score (0-100), duration and heart rate summary."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise."), mcp.Enum("PUSH_UP", "SQUAT")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to all.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one session with its heart rate samples."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session ID (UUID)")),
)

var toolGetWeeklyProgress = mcp.NewTool("get_weekly_progress",
	mcp.WithDescription("Reps done in a Monday-to-Sunday week against the weekly rep goal."),
	mcp.WithString("date", mcp.Description("Any day in the week (YYYY-MM-DD). Defaults to today.")),
)

var toolGetDailyChallenge = mcp.NewTool("get_daily_challenge",
	mcp.WithDescription("The single-session challenge for a day and whether it was completed."),
	mcp.WithString("date", mcp.Description("Day (YYYY-MM-DD). Defaults to today.")),
)

var toolGetExerciseSummary = mcp.NewTool("get_exercise_summary",
	mcp.WithDescription("Per-exercise totals over a time range: sessions, total/best/average reps, average score, duration, heart rate and typical start time."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetPeriodSummary = mcp.NewTool("get_period_summary",
	mcp.WithDescription("Rep totals per exercise grouped by day, week or month."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 week'."), mcp.Enum("1 day", "1 week", "1 month")),
)

var toolGetDataStats = mcp.NewTool("get_data_stats",
	mcp.WithDescription("Counts of stored sessions, reps, heart rate samples and completed challenges."),
)

var toolAnalyzeFrame = mcp.NewTool("analyze_frame",
	mcp.WithDescription("Grade one body-landmark frame. Returns the next phase and rep count, the form verdict with joint angles, and a coaching prompt for those angles. Pass the phase and reps returned by the previous call to analyse a sequence."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise"), mcp.Enum("PUSH_UP", "SQUAT")),
	mcp.WithArray("landmarks", mcp.Required(),
		mcp.Description("33 landmarks in the MediaPipe body model order, each {x, y, z, visibility} or [x, y, z, visibility], normalised to the image."),
	),
	mcp.WithString("phase", mcp.Description("Current phase. Defaults to up."), mcp.Enum("up", "down")),
	mcp.WithNumber("reps", mcp.Description("Current rep count. Defaults to 0.")),
)

// --- Tool handlers ---

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	f := storage.SessionFilter{Start: start, End: end, Limit: req.GetInt("limit", 0)}
	if e := req.GetString("exercise", ""); e != "" {
		w, err := reps.ParseWorkout(e)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		f.ExerciseType = w.DisplayName()
	}

	uid := UserIDFromContext(ctx)
	sessions, err := h.ds.QuerySessions(ctx, f, uid)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session ID: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	detail, err := h.ds.GetSession(ctx, id, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("session not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(detail)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// weeklyProgress builds the progress view for the week containing day.
func (h *handlers) weeklyProgress(ctx context.Context, day time.Time, uid int) (*coach.WeeklyProgress, error) {
	goal, err := h.ds.GetWeeklyGoal(ctx, uid, h.opts.WeeklyGoalDefault)
	if err != nil {
		return nil, err
	}
	start, end := coach.WeekBounds(day)
	total, err := h.ds.RepsBetween(ctx, start, end, "", uid)
	if err != nil {
		return nil, err
	}
	p := coach.NewWeeklyProgress(day, total, goal)
	return &p, nil
}

func (h *handlers) getWeeklyProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := h.dayParam(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	progress, err := h.weeklyProgress(ctx, day, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_weekly_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(progress)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDailyChallenge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := h.dayParam(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	completed, err := h.ds.IsChallengeCompleted(ctx, UserIDFromContext(ctx), day)
	if err != nil {
		h.log.Error("mcp get_daily_challenge", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"date":      day.Format("2006-01-02"),
		"challenge": coach.DailyChallenge(day),
		"completed": completed,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	summary, err := h.ds.GetExerciseSummary(ctx, start, end, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_exercise_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPeriodSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 week")
	periods, err := h.ds.GetPeriodSummary(ctx, start, end, bucket, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_period_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(periods)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDataStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetDataStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_data_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// frameAnalysis is the analyze_frame result.
type frameAnalysis struct {
	Phase        reps.Phase   `json:"phase"`
	Reps         uint32       `json:"reps"`
	RepCompleted bool         `json:"rep_completed"`
	Verdict      reps.Verdict `json:"verdict"`
	Prompt       string       `json:"prompt"`
}

func (h *handlers) analyzeFrame(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	w, err := reps.ParseWorkout(exercise)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, ok := req.GetArguments()["landmarks"]
	if !ok {
		return mcp.NewToolResultError("landmarks parameter is required"), nil
	}
	frame, err := frameFromArgument(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid landmarks: " + err.Error()), nil
	}

	var phase reps.Phase
	if err := phase.UnmarshalText([]byte(req.GetString("phase", "up"))); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	count := req.GetInt("reps", 0)
	if count < 0 {
		return mcp.NewToolResultError("reps must not be negative"), nil
	}
	// The next rep must still fit the counter.
	if count >= math.MaxUint32 {
		return mcp.NewToolResultError(fmt.Sprintf("reps must be below %d", uint32(math.MaxUint32))), nil
	}

	next, n, verdict, err := h.opts.Rules.Analyze(phase, uint32(count), w, frame)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(frameAnalysis{
		Phase:        next,
		Reps:         n,
		RepCompleted: n > uint32(count),
		Verdict:      verdict,
		Prompt:       coach.Prompt(w, verdict.Angles),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// frameFromArgument converts the decoded landmarks argument back into a
// frame through its JSON form.
func frameFromArgument(v any) (pose.Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return pose.Frame{}, err
	}
	var f pose.Frame
	if err := json.Unmarshal(data, &f.Landmarks); err != nil {
		return pose.Frame{}, err
	}
	return f, nil
}
