package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "RepCoach server URL for remote mode (e.g. https://repcoach.tail1234.ts.net)")
	configPath := flag.String("config", "", "config file for local mode (direct database access)")
	login := flag.String("user", "", "local mode: login whose data is served (defaults to auth.default_user)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcoach-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if (*serverURL == "") == (*configPath == "") {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-mcp -server <URL> | -config config.yaml [-user login]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()
	var (
		ds        mcp.DataSource
		opts      mcp.Options
		stdioOpts []mcpserver.StdioOption
	)

	if *serverURL != "" {
		// The remote server resolves the user from the tailnet identity.
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if *login == "" {
			*login = cfg.Auth.DefaultUser
		}
		uid, err := db.GetOrCreateUser(ctx, *login, *login)
		if err != nil {
			log.Error("resolving user", "login", *login, "error", err)
			os.Exit(1)
		}

		ds = db
		opts = mcp.Options{
			Location:          cfg.Coach.Location(),
			WeeklyGoalDefault: cfg.Coach.WeeklyGoalDefault,
			Rules:             reps.Rules{StrictPushUp: cfg.Coach.StrictPushUp},
		}
		stdioOpts = append(stdioOpts, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
			return mcp.WithUserID(ctx, uid)
		}))
		log.Info("local mode", "user", *login, "user_id", uid)
	}

	s := mcp.New(ds, Version, opts, log)
	if err := mcpserver.ServeStdio(s, stdioOpts...); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
