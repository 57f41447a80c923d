package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QuerySessions(ctx context.Context, f storage.SessionFilter, userID int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID, userID int) (*storage.SessionDetail, error)
	RepsBetween(ctx context.Context, start, end time.Time, exerciseType string, userID int) (int, error)
	GetWeeklyGoal(ctx context.Context, userID, def int) (int, error)
	IsChallengeCompleted(ctx context.Context, userID int, day time.Time) (bool, error)
	GetExerciseSummary(ctx context.Context, start, end time.Time, userID int) ([]storage.ExerciseSummary, error)
	GetPeriodSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.PeriodSummary, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
