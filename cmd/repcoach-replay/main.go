package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claude/repcoach/internal/replay"
	"github.com/claude/repcoach/internal/reps"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "RepCoach server URL (e.g. https://repcoach.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("REPCOACH_API_KEY"), "server API key (default $REPCOACH_API_KEY)")
	dir := flag.String("path", "", "directory of .jsonl recordings")
	dryRun := flag.Bool("dry-run", false, "analyse recordings locally without a server")
	strict := flag.Bool("strict-pushup", false, "dry run: require a straight body for push-up transitions")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcoach-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-replay -server <URL> -path <recordings dir> [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}

	info, err := os.Stat(*dir)
	if err != nil || !info.IsDir() {
		log.Error("recordings directory not found", "path", *dir)
		os.Exit(1)
	}

	var (
		client *replay.Client
		state  *replay.StateDB
	)
	if *dryRun {
		log.Info("DRY RUN mode: recordings are analysed locally and not sent")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		state, err = replay.OpenStateDB(filepath.Join(homeDir, ".repcoach-replay"))
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		client = replay.NewClient(*serverURL, *apiKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := replay.New(client, state, *dir, *dryRun, reps.Rules{StrictPushUp: *strict}, log)
	stats, err := r.Run(ctx)
	if err != nil {
		log.Error("replay failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("replay complete")
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:   %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:    %d (already replayed)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Frames sent:      %d\n", stats.FramesSent)
	fmt.Printf("  Frames invalid:   %d\n", stats.FramesInvalid)
	fmt.Printf("  Heart rate:       %d\n", stats.HeartRateSent)
	fmt.Printf("  Lines rejected:   %d\n", stats.LinesRejected)
	fmt.Printf("  Reps:             %d\n", stats.Reps)
	fmt.Printf("  Challenges met:   %d\n", stats.ChallengesMet)

	if len(stats.SessionsReplayed) > 0 {
		fmt.Printf("\n  Sessions:\n")
		for _, s := range stats.SessionsReplayed {
			fmt.Printf("    - %s: %s %d reps, score %d\n", s.Path, s.Exercise.DisplayName(), s.Reps, s.Score)
		}
	}
	fmt.Println()
}
