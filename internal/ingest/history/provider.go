package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/ingest"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/reps"
)

// namespace seeds deterministic session IDs so re-imports hit ON CONFLICT.
var namespace = uuid.MustParse("6f0c4a3e-2b1d-4d57-9a0e-3c52b7a4e9d1")

// Store is the persistence the provider needs.
type Store interface {
	InsertSession(ctx context.Context, row models.SessionRow) (bool, error)
}

// Provider imports workout-history exports as finished sessions.
type Provider struct {
	store Store
	loc   *time.Location
	log   *slog.Logger
}

// NewProvider creates a history ingest provider. Textual dates without a
// zone are read in loc.
func NewProvider(store Store, loc *time.Location, log *slog.Logger) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{store: store, loc: loc, log: log}
}

// Ingest parses an export and stores each record as a session.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	records, rejected, err := Parse(r, p.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}

	result := &ingest.Result{RecordsReceived: len(records) + len(rejected)}
	for _, pe := range rejected {
		result.RecordsRejected++
		result.RejectedLines = append(result.RejectedLines, pe.Error())
	}

	for _, rec := range records {
		row, err := SessionRow(rec, userID)
		if err != nil {
			result.RecordsRejected++
			result.RejectedLines = append(result.RejectedLines, fmt.Sprintf("id %d: %v", rec.LegacyID, err))
			continue
		}
		inserted, err := p.store.InsertSession(ctx, row)
		if err != nil {
			return result, fmt.Errorf("inserting session %d: %w", rec.LegacyID, err)
		}
		if inserted {
			result.SessionsInserted++
		} else {
			result.SessionsSkipped++
		}
	}

	result.Message = fmt.Sprintf("%d sessions imported, %d already present, %d rejected",
		result.SessionsInserted, result.SessionsSkipped, result.RecordsRejected)
	p.log.Info("history import",
		"user_id", userID,
		"received", result.RecordsReceived,
		"inserted", result.SessionsInserted,
		"skipped", result.SessionsSkipped,
		"rejected", result.RecordsRejected,
	)
	return result, nil
}

// SessionRow converts a history record to a storage row. The ID is derived
// from the user, legacy ID and date so the same export always maps to the
// same rows.
func SessionRow(rec models.HistoryRecord, userID int) (models.SessionRow, error) {
	w, err := reps.ParseWorkout(rec.ExerciseType)
	if err != nil {
		return models.SessionRow{}, err
	}
	key := strconv.Itoa(userID) + "/" + strconv.Itoa(rec.LegacyID) + "/" + strconv.FormatInt(rec.Date.UnixMilli(), 10)
	return models.SessionRow{
		ID:           uuid.NewSHA1(namespace, []byte(key)),
		UserID:       userID,
		StartedAt:    rec.Date,
		EndedAt:      rec.Date,
		ExerciseType: w.DisplayName(),
		Reps:         rec.Reps,
		Score:        rec.Score,
		Source:       models.SourceImport,
	}, nil
}
