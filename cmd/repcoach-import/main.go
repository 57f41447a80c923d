package main

import (
	"compress/gzip"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/ingest"
	"github.com/claude/repcoach/internal/ingest/history"
	"github.com/claude/repcoach/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	path := flag.String("path", "", "history export file, or a directory of them (required)")
	login := flag.String("user", "", "login to import for (defaults to auth.default_user)")
	dryRun := flag.Bool("dry-run", false, "parse and report counts without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-import -config config.yaml -path history.csv [-user login] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	files, err := exportFiles(*path)
	if err != nil {
		log.Error("no history files", "path", *path, "error", err)
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	loc := cfg.Coach.Location()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
		for _, f := range files {
			if err := parseOnly(f, loc, log); err != nil {
				log.Error("parse failed", "file", f, "error", err)
			}
		}
		return
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	if *login == "" {
		*login = cfg.Auth.DefaultUser
	}
	uid, err := db.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("resolving user", "login", *login, "error", err)
		os.Exit(1)
	}

	provider := history.NewProvider(db, loc, log)
	failed := false
	for _, f := range files {
		if err := importFile(ctx, db, provider, f, uid, log); err != nil {
			log.Error("import failed", "file", f, "error", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	log.Info("import complete")
}

// exportFiles returns path itself, or the export files directly inside it.
func exportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".gz")
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(name) {
		case ".csv", ".txt":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv or .txt files in %s", path)
	}
	return files, nil
}

// openExport opens a file, decompressing .gz exports.
func openExport(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, f}, nil
}

func parseOnly(path string, loc *time.Location, log *slog.Logger) error {
	r, err := openExport(path)
	if err != nil {
		return err
	}
	defer r.Close()

	records, rejected, err := history.Parse(r, loc)
	if err != nil {
		return err
	}
	log.Info("parsed history", "file", path, "records", len(records), "rejected", len(rejected))
	for _, pe := range rejected {
		log.Warn("rejected line", "file", path, "line", pe.Line, "error", pe.Err)
	}
	return nil
}

func importFile(ctx context.Context, db *storage.DB, provider *history.Provider, path string, uid int, log *slog.Logger) error {
	r, err := openExport(path)
	if err != nil {
		return err
	}
	defer r.Close()

	logID, err := db.InsertImportLog(ctx, storage.ImportLog{UserID: uid, Source: "history-cli", Status: storage.ImportRunning})
	if err != nil {
		log.Warn("failed to create import log", "error", err)
	}

	start := time.Now()
	result, importErr := provider.Ingest(ctx, r, uid)
	if result == nil {
		result = &ingest.Result{}
	}

	if logID != 0 {
		entry := result.LogEntry(uid, "history-cli", importErr, int(time.Since(start).Milliseconds()))
		if err := db.UpdateImportLog(ctx, logID, entry); err != nil {
			log.Warn("failed to update import log", "error", err)
		}
	}

	if importErr != nil {
		return importErr
	}
	log.Info("import stats",
		"file", path,
		"received", result.RecordsReceived,
		"inserted", result.SessionsInserted,
		"skipped", result.SessionsSkipped,
		"rejected", result.RecordsRejected,
	)
	return nil
}
