package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// DefaultLimit is the feed size when the request does not specify one.
const DefaultLimit = 50

// Request describes one feed build. UserID may be empty for anonymous
// discovery. Seed fixes the explore sampling RNG; zero draws a fresh seed so
// concurrent requests stay independent.
type Request struct {
	UserID  string
	Limit   int
	Session *profile.SessionContext
	Seed    int64
}

// Result is the ordered feed produced by one pipeline run.
type Result struct {
	PostIDs []string
	Posts   []ScoredPost
}

// Service runs the full feed pipeline: profile build, candidate generation,
// quick scoring, full scoring, explore/exploit interleaving, and diversity
// enforcement. Services are stateless per request; the only shared state is
// the signal store behind the stages.
type Service struct {
	profiles *profile.Builder
	gen      *Generator
	scorer   *FullScorer
	metrics  *Metrics
	logger   *slog.Logger
	poolSize int
	now      func() time.Time
}

// NewService wires the pipeline stages together.
func NewService(
	profiles *profile.Builder,
	posts post.Repository,
	signals engagement.SignalStore,
	weights *Weights,
	metrics *Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles: profiles,
		gen:      NewGenerator(posts, signals, logger),
		scorer:   NewFullScorer(signals, weights, logger),
		metrics:  metrics,
		logger:   logger,
		poolSize: DefaultPoolSize,
		now:      time.Now,
	}
}

// SetPoolSize overrides the candidate pool size.
func (s *Service) SetPoolSize(n int) {
	if n > 0 {
		s.poolSize = n
	}
}

// BuildFeed runs the pipeline for one request and returns the ordered post
// list. Requests either complete or fail; a partial feed is never returned.
func (s *Service) BuildFeed(ctx context.Context, req Request) (*Result, error) {
	start := s.now()

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	prof, err := s.profiles.Build(ctx, req.UserID, req.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile: %w", err)
	}

	candidates, err := s.gen.Generate(ctx, req.UserID, prof, s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidates: %w", err)
	}

	shortlist := Shortlist(candidates, prof, limit, s.now())

	scored, err := s.scorer.Score(ctx, shortlist, prof, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to score shortlist: %w", err)
	}

	exploit, explore := Partition(scored, prof)
	blended := Interleave(exploit, explore, limit, rng)
	final := EnforceDiversity(blended)

	if len(final) > limit {
		final = final[:limit]
	}

	ids := make([]string, len(final))
	for i, sp := range final {
		ids[i] = sp.Post.ID
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveBuildDuration(elapsed.Seconds())
		s.metrics.ObserveCandidatePoolSize(float64(len(candidates)))
		s.metrics.IncFeedsBuilt()
	}
	s.logger.Info("feed built",
		"user_id", req.UserID,
		"candidates", len(candidates),
		"shortlist", len(shortlist),
		"scored", len(scored),
		"exploit_pool", len(exploit),
		"explore_pool", len(explore),
		"final", len(final),
		"duration_ms", elapsed.Milliseconds())

	return &Result{PostIDs: ids, Posts: final}, nil
}
