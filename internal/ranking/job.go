package ranking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/post"
)

// RecomputeJobConfig configures the score recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Window bounds how far back a post's vote activity may be for the post
	// to be picked up by a cycle.
	Window time.Duration
	// Timeout for each recompute cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
}

// Recompute job defaults.
const (
	DefaultRecomputeInterval = 5 * time.Minute
	DefaultRecomputeWindow   = time.Hour
	DefaultRecomputeTimeout  = time.Minute
)

// RecomputeJob periodically recomputes engagement scores for posts with
// recent vote activity. Scores decay with age, so even posts that stopped
// receiving votes need periodic refreshes while they remain in the window.
type RecomputeJob struct {
	config RecomputeJobConfig
	posts  post.Repository
	engine *Engine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a new score recompute job.
func NewRecomputeJob(config RecomputeJobConfig, posts post.Repository, engine *Engine) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Window == 0 {
		config.Window = DefaultRecomputeWindow
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RecomputeJob{
		config: config,
		posts:  posts,
		engine: engine,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the recompute job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the recompute job.
func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("score recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("score recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.RecomputeActive(ctx)
		}
	}
}

// RecomputeActive runs one recompute cycle: every post with vote activity
// inside the window gets its tallies and score recomputed from the vote rows.
// Per-post failures are logged and skipped so one bad row cannot stall the
// cycle. Returns the number of posts successfully recomputed.
func (j *RecomputeJob) RecomputeActive(parentCtx context.Context) int {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	since := startTime.Add(-j.config.Window)

	postIDs, err := j.posts.ListActiveSince(ctx, since)
	if err != nil {
		j.config.Logger.Error("failed to list active posts", "error", err)
		if j.config.Metrics != nil {
			j.config.Metrics.IncRecomputeErrors()
		}
		return 0
	}
	if len(postIDs) == 0 {
		return 0
	}

	j.config.Logger.Info("recomputing engagement scores",
		"active_count", len(postIDs),
		"window", j.config.Window)

	var successCount int
	for i, postID := range postIDs {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("score recompute timeout exceeded",
				"processed", i,
				"total", len(postIDs),
				"timeout", j.config.Timeout)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			return successCount
		default:
		}

		if _, err := j.engine.RecomputePost(ctx, postID); err != nil {
			j.config.Logger.Error("failed to recompute score",
				"post_id", postID,
				"error", err)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			continue
		}
		successCount++
	}

	duration := time.Since(startTime).Seconds()
	if j.config.Metrics != nil {
		j.config.Metrics.IncRecomputeTotal()
		j.config.Metrics.ObserveRecomputeDuration(duration)
		j.config.Metrics.SetLastRecompute(time.Now(), successCount)
	}

	j.config.Logger.Info("score recompute cycle complete",
		"recomputed", successCount,
		"total", len(postIDs),
		"duration_seconds", duration)

	return successCount
}
