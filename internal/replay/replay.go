package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/session"
)

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	FramesSent       int
	FramesInvalid    int
	HeartRateSent    int
	LinesRejected    int
	Reps             int
	ChallengesMet    int
	SessionsReplayed []FileResult
}

// FileResult is the outcome of replaying one recording.
type FileResult struct {
	Path     string
	Exercise reps.Workout
	Reps     int
	Score    int
	// SessionID is empty for dry runs.
	SessionID string
}

// Replayer walks a directory of recordings and replays each one, locally in
// dry-run mode or against the server otherwise.
type Replayer struct {
	client *Client
	state  *StateDB
	dir    string
	dryRun bool
	rules  reps.Rules
	log    *slog.Logger
	stats  Stats
}

// New creates a Replayer. client and state may be nil in dry-run mode.
func New(client *Client, state *StateDB, dir string, dryRun bool, rules reps.Rules, log *slog.Logger) *Replayer {
	return &Replayer{
		client: client,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		rules:  rules,
		log:    log,
	}
}

// FindRecordings lists .jsonl and .jsonl.gz files under dir in path order.
func FindRecordings(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.gz") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Run replays every recording under the directory. A failing file is logged
// and counted; only a server failure that would repeat for every file stops
// the run.
func (r *Replayer) Run(ctx context.Context) (*Stats, error) {
	files, err := FindRecordings(r.dir)
	if err != nil {
		return &r.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		r.stats.FilesTotal++

		relPath, _ := filepath.Rel(r.dir, f)
		info, err := os.Stat(f)
		if err != nil {
			r.log.Warn("stat failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}

		var hash string
		if !r.dryRun {
			hash, err = HashFile(f)
			if err != nil {
				r.log.Warn("hash failed", "file", f, "error", err)
				r.stats.FilesErrored++
				continue
			}
			done, err := r.state.IsReplayed(relPath, info.Size(), hash)
			if err != nil {
				r.log.Warn("state check failed", "file", f, "error", err)
				r.stats.FilesErrored++
				continue
			}
			if done {
				r.stats.FilesSkipped++
				continue
			}
		}

		rec, err := ReadFile(f)
		if err != nil {
			r.log.Warn("parse failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}
		r.stats.LinesRejected += len(rec.Rejected)
		for _, line := range rec.Rejected {
			r.log.Debug("rejected line", "file", relPath, "detail", line)
		}

		var res FileResult
		if r.dryRun {
			res = r.replayLocal(rec)
		} else {
			res, err = r.replayRemote(ctx, rec)
			if err != nil {
				r.stats.FilesErrored++
				var se *statusError
				if errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden) {
					return &r.stats, fmt.Errorf("replaying %s: %w", relPath, err)
				}
				r.log.Warn("replay failed", "file", f, "error", err)
				continue
			}
			if err := r.state.MarkReplayed(relPath, info.Size(), hash, res.SessionID, res.Reps); err != nil {
				r.log.Warn("failed to mark replayed", "file", relPath, "error", err)
			}
		}
		res.Path = relPath

		r.stats.FilesReplayed++
		r.stats.Reps += res.Reps
		r.stats.SessionsReplayed = append(r.stats.SessionsReplayed, res)
		r.log.Info("replayed recording",
			"file", relPath,
			"exercise", res.Exercise,
			"reps", res.Reps,
			"score", res.Score,
			"dry_run", r.dryRun,
		)
	}

	return &r.stats, nil
}

// replayLocal runs the recording through an in-process session.
func (r *Replayer) replayLocal(rec *Recording) FileResult {
	start := time.Now()
	if len(rec.Records) > 0 && !rec.Records[0].T.IsZero() {
		start = rec.Records[0].T.Time
	}
	sess := session.New(0, rec.Header.Exercise, start, session.Options{
		Rules:  r.rules,
		Source: models.SourceReplay,
	})

	last := start
	for _, line := range rec.Records {
		at := last
		if !line.T.IsZero() {
			at = line.T.Time
		}
		last = at
		if line.BPM > 0 {
			sess.RecordHeartRate(line.BPM, at)
			r.stats.HeartRateSent++
		}
		if len(line.Landmarks) == 0 {
			continue
		}
		if _, err := sess.Process(line.Frame(), at); err != nil {
			r.stats.FramesInvalid++
			continue
		}
		r.stats.FramesSent++
	}

	row := sess.Summary(last)
	return FileResult{Exercise: rec.Header.Exercise, Reps: row.Reps, Score: row.Score}
}

// replayRemote streams the recording into a server session.
func (r *Replayer) replayRemote(ctx context.Context, rec *Recording) (FileResult, error) {
	id, err := r.client.StartSession(ctx, rec.Header.Exercise)
	if err != nil {
		return FileResult{}, err
	}

	var last session.Update

	for _, line := range rec.Records {
		if line.BPM > 0 {
			if err := r.client.SendHeartRate(ctx, id, line.BPM, line.T.Time); err != nil {
				return FileResult{}, fmt.Errorf("heart rate: %w", err)
			}
			r.stats.HeartRateSent++
		}
		if len(line.Landmarks) == 0 {
			continue
		}
		u, err := r.client.SendFrame(ctx, id, line.Frame())
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.status == http.StatusBadRequest {
				r.stats.FramesInvalid++
				continue
			}
			return FileResult{}, fmt.Errorf("frame: %w", err)
		}
		r.stats.FramesSent++
		last = u
	}

	fin, err := r.client.FinishSession(ctx, id)
	if err != nil {
		return FileResult{}, err
	}
	if fin.Unconfirmed {
		r.log.Warn("finish response lost, using last frame update", "session_id", id)
		fin.Session.Reps = int(last.Reps)
		fin.Session.Score = last.Score
	}
	if fin.Challenge.Met {
		r.stats.ChallengesMet++
	}
	return FileResult{
		Exercise:  rec.Header.Exercise,
		Reps:      fin.Session.Reps,
		Score:     fin.Session.Score,
		SessionID: id.String(),
	}, nil
}
