package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/storage"
)

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	end := h.now()
	start := end.AddDate(0, 0, -14)

	sessions, err := h.ds.QuerySessions(ctx, storage.SessionFilter{Start: start, End: end}, uid)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	now := h.now().In(h.opts.Location)
	day := coach.Day(now)

	progress, err := h.weeklyProgress(ctx, now, uid)
	if err != nil {
		return nil, err
	}

	completed, err := h.ds.IsChallengeCompleted(ctx, uid, day)
	if err != nil {
		h.log.Warn("today: challenge lookup failed", "error", err)
	}

	sessions, err := h.ds.QuerySessions(ctx, storage.SessionFilter{Start: day, End: day.AddDate(0, 0, 1)}, uid)
	if err != nil {
		h.log.Warn("today: session query failed", "error", err)
	}

	summary := map[string]any{
		"date":                day.Format("2006-01-02"),
		"weekly_progress":     progress,
		"challenge":           coach.DailyChallenge(day),
		"challenge_completed": completed,
		"todays_sessions":     sessions,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
