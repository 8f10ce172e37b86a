package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// CandidateWindow is how far back candidate retrieval reaches.
const CandidateWindow = 30 * 24 * time.Hour

// DefaultPoolSize is the candidate pool size when the caller does not
// specify one.
const DefaultPoolSize = 400

// Generator retrieves the broad candidate pool from the local and federated
// sources. Retrieval stays index-friendly: eligibility is expressed entirely
// through the repository's candidate query, with no per-post computation here.
type Generator struct {
	posts   post.Repository
	signals engagement.SignalStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator creates a candidate generator.
func NewGenerator(posts post.Repository, signals engagement.SignalStore, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		posts:   posts,
		signals: signals,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate retrieves up to poolSize recent eligible posts, unioning the local
// and federated sources. The two source fetches run concurrently; they have
// no ordering dependency. An empty userID yields anonymous discovery over
// fully public content.
func (g *Generator) Generate(ctx context.Context, userID string, prof *profile.Profile, poolSize int) ([]*post.Post, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	blocked := map[string]bool{}
	if userID != "" {
		var err error
		blocked, err = g.signals.BlockedCreatorKeys(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch block list: %w", err)
		}
	}

	base := post.CandidateQuery{
		Limit:              poolSize,
		CreatedAfter:       g.now().Add(-CandidateWindow),
		ExcludeAuthorID:    userID,
		FollowedUserIDs:    prof.FollowedUsers,
		FollowedActorIDs:   prof.FollowedActors,
		BlockedCreatorKeys: blocked,
	}

	var wg sync.WaitGroup
	results := make([][]*post.Post, 2)
	errs := make([]error, 2)

	for i, origin := range []post.Origin{post.OriginLocal, post.OriginFederated} {
		wg.Add(1)
		go func(i int, origin post.Origin) {
			defer wg.Done()
			query := base
			query.Origin = origin
			results[i], errs[i] = g.posts.ListCandidates(ctx, query)
		}(i, origin)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s candidates: %w", []post.Origin{post.OriginLocal, post.OriginFederated}[i], err)
		}
	}

	union := append(results[0], results[1]...)

	// Both sources arrive pre-sorted; re-sorting the union keeps recency
	// order across origins. SliceStable preserves per-source insertion order
	// on timestamp ties.
	sort.SliceStable(union, func(i, j int) bool {
		return union[i].CreatedAt.After(union[j].CreatedAt)
	})

	if len(union) > poolSize {
		union = union[:poolSize]
	}

	g.logger.Debug("candidate pool generated",
		"user_id", userID,
		"local", len(results[0]),
		"federated", len(results[1]),
		"pool", len(union))

	return union, nil
}
