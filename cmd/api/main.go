// Package main is the entry point for the feed service API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/atomine-elektrine/elektrine-feed/internal/api"
	"github.com/atomine-elektrine/elektrine-feed/internal/config"
	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/feed"
	"github.com/atomine-elektrine/elektrine-feed/internal/health"
	"github.com/atomine-elektrine/elektrine-feed/internal/middleware"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
	"github.com/atomine-elektrine/elektrine-feed/internal/ranking"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Feed Service API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		posts     post.Repository
		signals   engagement.SignalStore
		db        *sql.DB
		dbChecker api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		posts = post.NewPostgresRepository(db, logger)
		signals = engagement.NewPostgresSignalStore(db, logger)
		dbChecker = health.NewDBChecker(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		posts = post.NewInMemoryRepository()
		signals = engagement.NewInMemorySignalStore()
	}

	// Redis: score update pub/sub and distributed rate limiting.
	var (
		redisClient  *redis.Client
		redisChecker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		redisChecker = health.NewRedisChecker(redisClient)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	mwMetrics := middleware.NewMetrics()
	feedMetrics := feed.NewMetrics()
	rankingMetrics := ranking.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		mwMetrics.Register,
		feedMetrics.Register,
		rankingMetrics.Register,
	} {
		if err := register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Feed pipeline
	weights, err := feed.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("running with default ranking weights", "error", err)
	}
	profiles := profile.NewBuilder(signals, posts, logger)
	feedService := feed.NewService(profiles, posts, signals, weights, feedMetrics, logger)
	feedService.SetPoolSize(cfg.FeedPoolSize)

	// Ranking engine with score fan-out
	broadcaster := ranking.NewScoreBroadcaster()
	publishers := []ranking.Publisher{broadcaster}
	if redisClient != nil {
		publishers = append(publishers, ranking.NewRedisPublisher(redisClient))
	}
	engine := ranking.NewEngine(posts, signals, rankingMetrics, logger, publishers...)

	// Background score recompute
	recomputeJob := ranking.NewRecomputeJob(ranking.RecomputeJobConfig{
		Interval: cfg.RecomputeInterval,
		Window:   cfg.RecomputeWindow,
		Logger:   logger,
		Metrics:  rankingMetrics,
	}, posts, engine)
	jobCtx, cancelJob := context.WithCancel(context.Background())
	defer cancelJob()
	if err := recomputeJob.Start(jobCtx); err != nil {
		logger.Error("failed to start recompute job", "error", err)
		os.Exit(1)
	}
	defer recomputeJob.Stop()

	// Handlers
	feedHandlers := api.NewFeedHandlers(feedService, cfg.FeedDefaultLimit)
	voteHandlers := api.NewVoteHandlers(engine, posts)
	scoreWSHandlers := api.NewScoreWebSocketHandlers(broadcaster)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	// Rate limiting: Redis-backed when available so limits hold across instances.
	var limitStore middleware.RateLimitStore
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient, mwMetrics)
	} else {
		limitStore = middleware.NewInMemoryRateLimitStore()
	}
	feedLimiter := middleware.RateLimiter(limitStore, middleware.DefaultFeedLimit(), middleware.UserKeyFunc())
	voteLimiter := middleware.RateLimiter(limitStore, middleware.DefaultVoteLimit(), middleware.UserKeyFunc())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.Handle("/feed", feedLimiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			feedHandlers.GetFeed(w, r)
		case http.MethodPost:
			feedHandlers.BuildFeed(w, r)
		default:
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
			api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
		}
	})))

	mux.Handle("/posts/", voteLimiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && hasSuffixSegment(r.URL.Path, "vote"):
			voteHandlers.CastVote(w, r)
		case r.Method == http.MethodPost && hasSuffixSegment(r.URL.Path, "like"):
			voteHandlers.Like(w, r)
		case r.Method == http.MethodDelete && hasSuffixSegment(r.URL.Path, "like"):
			voteHandlers.Unlike(w, r)
		case r.Method == http.MethodGet && hasSuffixSegment(r.URL.Path, "score"):
			voteHandlers.GetScore(w, r)
		default:
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}
	})))

	mux.HandleFunc("/communities/", scoreWSHandlers.SubscribeToScores)

	// Middleware chain: RequestID -> Logging -> HTTPMetrics -> CORS -> routes
	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.HTTPMetrics(mwMetrics)(cors(mux)),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	recomputeJob.Stop()
	logger.Info("server stopped")
}

// hasSuffixSegment reports whether the path's final segment equals seg.
func hasSuffixSegment(path, seg string) bool {
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	idx := len(path) - len(seg)
	return idx > 1 && path[idx:] == seg && path[idx-1] == '/'
}
