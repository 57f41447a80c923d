package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/reps"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Options configures the coaching view the tools present.
type Options struct {
	// Location decides calendar days and week boundaries.
	Location          *time.Location
	WeeklyGoalDefault int
	Rules             reps.Rules
}

// New creates an MCP server with all tools, resources and prompts registered.
func New(ds DataSource, version string, opts Options, log *slog.Logger) *server.MCPServer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WeeklyGoalDefault <= 0 {
		opts.WeeklyGoalDefault = coach.DefaultWeeklyGoal
	}

	s := server.NewMCPServer("RepCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions("RepCoach exercise server. Query push-up and squat sessions, weekly goal progress and daily challenges, and grade body-landmark frames. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, opts: opts, log: log, now: time.Now}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetSessions, Handler: h.getSessions},
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolGetWeeklyProgress, Handler: h.getWeeklyProgress},
		server.ServerTool{Tool: toolGetDailyChallenge, Handler: h.getDailyChallenge},
		server.ServerTool{Tool: toolGetExerciseSummary, Handler: h.getExerciseSummary},
		server.ServerTool{Tool: toolGetPeriodSummary, Handler: h.getPeriodSummary},
		server.ServerTool{Tool: toolGetDataStats, Handler: h.getDataStats},
		server.ServerTool{Tool: toolAnalyzeFrame, Handler: h.analyzeFrame},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resToday, Handler: h.today},
	)

	// Prompts
	s.AddPrompt(promptFormFeedback, h.formFeedback)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds   DataSource
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// --- Resource definitions ---

var resRecentSessions = mcp.NewResource(
	"repcoach://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Exercise sessions from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resToday = mcp.NewResource(
	"repcoach://today",
	"Today",
	mcp.WithResourceDescription("Today's sessions, weekly goal progress and the daily challenge"),
	mcp.WithMIMEType("application/json"),
)
