package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/ingest/history"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
	"github.com/claude/repcoach/internal/storage"
)

// Store is the persistence the HTTP handlers need. *storage.DB satisfies it.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	InsertSession(ctx context.Context, row models.SessionRow) (bool, error)
	InsertSessionHeartRate(ctx context.Context, rows []models.HeartRateRow) (int64, error)
	QuerySessions(ctx context.Context, f storage.SessionFilter, userID int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID, userID int) (*storage.SessionDetail, error)
	RepsBetween(ctx context.Context, start, end time.Time, exerciseType string, userID int) (int, error)
	GetWeeklyGoal(ctx context.Context, userID, def int) (int, error)
	SetWeeklyGoal(ctx context.Context, userID, goal int) error
	MarkChallengeCompleted(ctx context.Context, row models.ChallengeCompletionRow) (bool, error)
	IsChallengeCompleted(ctx context.Context, userID int, day time.Time) (bool, error)
	GetExerciseSummary(ctx context.Context, start, end time.Time, userID int) ([]storage.ExerciseSummary, error)
	GetPeriodSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.PeriodSummary, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
	Ping(ctx context.Context) error
}

var _ Store = (*storage.DB)(nil)

// Options carries the settings the handlers read.
type Options struct {
	APIKey            string
	DefaultUser       string
	Location          *time.Location
	WeeklyGoalDefault int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	sessions *session.Manager
	history  *history.Provider
	metrics  *metrics.Manager
	log      *slog.Logger
	opts     Options
	router   chi.Router
	now      func() time.Time

	whois WhoIser

	usersMu sync.Mutex
	users   map[string]int
}

// New creates a new Server with all routes configured.
func New(db Store, sessions *session.Manager, hist *history.Provider, opts Options, m *metrics.Manager, log *slog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WeeklyGoalDefault <= 0 {
		opts.WeeklyGoalDefault = coach.DefaultWeeklyGoal
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "local"
	}
	s := &Server{
		db:       db,
		sessions: sessions,
		history:  hist,
		metrics:  m,
		log:      log,
		opts:     opts,
		router:   chi.NewRouter(),
		now:      time.Now,
		users:    make(map[string]int),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale makes the identity middleware resolve callers with WhoIs.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

// SetMetricsHandler mounts the Prometheus scrape endpoint.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.router.Method(http.MethodGet, "/metrics", h)
}

// SetMCPHandler mounts the streamable MCP endpoint. Requests carry the
// caller's user ID in their context.
func (s *Server) SetMCPHandler(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)
		r.Handle("/mcp", h)
	})
}

func (s *Server) routes() {
	s.router.Use(PanicRecovery(s.metrics, s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/health", s.handleHealth)

	// Live session endpoints (API key required)
	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(APIKeyAuth(s.opts.APIKey))
		r.Use(s.identity)
		r.Post("/", s.handleStartSession)
		r.Post("/{id}/frames", s.handleFrame)
		r.Post("/{id}/heart_rate", s.handleHeartRate)
		r.Post("/{id}/finish", s.handleFinishSession)
		r.Get("/{id}/stream", s.handleStream)
	})

	s.router.Route("/api/v1/import", func(r chi.Router) {
		r.Use(APIKeyAuth(s.opts.APIKey))
		r.Use(s.identity)
		r.Post("/", s.handleImport)
	})

	// Dashboard API endpoints (no key, tsnet handles access)
	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)
		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/history", s.handleHistory)
		r.Get("/api/v1/history/{id}", s.handleHistoryDetail)
		r.Get("/api/v1/dashboard", s.handleDashboard)
		r.Get("/api/v1/challenge", s.handleChallenge)
		r.Put("/api/v1/settings/goal", s.handleSetGoal)
		r.Get("/api/v1/summary", s.handleSummary)
		r.Get("/api/v1/summary/periods", s.handlePeriodSummary)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/import/logs", s.handleImportLogs)
	})
}

// RunReaper finishes sessions that stopped receiving frames, every interval,
// until ctx is done. Abandoned sessions that analysed at least one frame are
// stored; a failed store puts the session back for the next pass.
func (s *Server) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap(ctx)
		}
	}
}

func (s *Server) reap(ctx context.Context) {
	for _, sess := range s.sessions.Reap(s.now()) {
		row := sess.Summary(sess.LastSeen())
		s.log.Info("session abandoned", "session_id", sess.ID, "reps", row.Reps, "frames", row.FramesAnalyzed)
		if row.FramesAnalyzed == 0 {
			continue
		}
		if _, err := s.saveSession(ctx, sess, row); err != nil {
			s.log.Error("storing abandoned session", "session_id", sess.ID, "error", err)
			s.sessions.Restore(sess)
		}
	}
	s.setActiveGauge()
}

func (s *Server) setActiveGauge() {
	if s.metrics != nil {
		s.metrics.GaugeActiveSessions.Set(float64(s.sessions.Active()))
	}
}
