// Package main is a one-shot batch recompute of engagement scores. It is
// meant for cron-style invocation and for repairing counter drift after
// incidents; the API server runs the same recompute continuously in-process.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/atomine-elektrine/elektrine-feed/internal/config"
	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/middleware"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/ranking"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	window := flag.Duration("window", 0, "recompute posts with vote activity in this window (default from config)")
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum run duration")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required for batch recompute")
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	posts := post.NewPostgresRepository(db, logger)
	signals := engagement.NewPostgresSignalStore(db, logger)
	engine := ranking.NewEngine(posts, signals, nil, logger)

	recomputeWindow := cfg.RecomputeWindow
	if *window > 0 {
		recomputeWindow = *window
	}

	job := ranking.NewRecomputeJob(ranking.RecomputeJobConfig{
		Window:  recomputeWindow,
		Timeout: *timeout,
		Logger:  logger,
	}, posts, engine)

	start := time.Now()
	count := job.RecomputeActive(context.Background())
	logger.Info("batch recompute finished",
		"recomputed", count,
		"window", recomputeWindow,
		"duration", time.Since(start).String())
}
