package profile

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
)

// InterestDecayRate is the per-day exponential decay applied to engagement
// events when computing hashtag interest weights.
const InterestDecayRate = 0.1

// HighDwellThresholdMs is the dwell time above which a view marks its
// hashtags as high-dwell interests.
const HighDwellThresholdMs = 30000

// MinViewsForDwellAverage is the minimum number of views of a creator before
// the dwell average is trusted; below it a single long view would dominate.
const MinViewsForDwellAverage = 2

// DismissedHashtagThreshold is the number of dismissed posts a hashtag must
// appear in before it is treated as a negative interest.
const DismissedHashtagThreshold = 3

// FavoriteDomainLikeThreshold is the number of liked federated posts from a
// domain before it counts as a favorite domain.
const FavoriteDomainLikeThreshold = 2

// Builder assembles per-request affinity profiles from the signal store.
// Builders are stateless and safe for concurrent use.
type Builder struct {
	signals engagement.SignalStore
	posts   post.Repository
	logger  *slog.Logger

	// now is injected for deterministic decay math in tests.
	now func() time.Time
}

// NewBuilder creates a profile builder.
func NewBuilder(signals engagement.SignalStore, posts post.Repository, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		signals: signals,
		posts:   posts,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the builder's time source (used by tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles the affinity profile for a user. An empty userID produces
// an anonymous profile of all-empty aggregates. Absent signal data is never
// an error, and posts referenced by events that no longer exist contribute
// nothing.
func (b *Builder) Build(ctx context.Context, userID string, session *SessionContext) (*Profile, error) {
	p := Empty()
	p.UserID = userID
	b.applySession(p, session)

	if userID == "" {
		return p, nil
	}

	follows, err := b.signals.Follows(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.FollowedUsers = follows.UserIDs
	p.FollowedActors = follows.ActorIDs

	likes, err := b.signals.LikesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views, err := b.signals.ViewsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dismissals, err := b.signals.DismissalsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	b.aggregateLikes(ctx, p, likes)
	b.aggregateViews(ctx, p, views)
	b.aggregateDismissals(ctx, p, dismissals)
	normalizeWeights(p.HashtagWeights)
	b.computeIgnoreRates(ctx, p, views, dismissals)

	satisfaction, err := b.signals.SatisfactionByViewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, record := range satisfaction {
		if key := record.CreatorKey(); key != "" {
			p.SatisfactionByCreator[key] = record.Score()
		}
	}

	return p, nil
}

// applySession copies session hints into the profile verbatim and builds
// indexed forms for the scorer.
func (b *Builder) applySession(p *Profile, session *SessionContext) {
	if session == nil {
		return
	}
	p.Session = *session
	for _, tag := range session.LikedHashtags {
		p.SessionLikedHashtags[tag] = true
	}
	for _, id := range session.LikedCreators {
		p.SessionLikedCreators["local:"+id] = true
	}
	for _, id := range session.LikedRemoteCreators {
		p.SessionLikedCreators["remote:"+id] = true
	}
	for _, id := range session.ViewedPosts {
		p.SessionViewed[id] = true
	}
}

// aggregateLikes folds like events into hashtag weights, liked-post indexes,
// content type and community affinities, and favorite domains.
func (b *Builder) aggregateLikes(ctx context.Context, p *Profile, likes []engagement.Like) {
	domainLikes := make(map[string]int)

	for _, like := range likes {
		p.LikedPosts[like.PostID] = true

		target, err := b.posts.GetByID(ctx, like.PostID)
		if err != nil {
			// The post is gone; the event contributes nothing.
			continue
		}

		decay := b.decayWeight(like.CreatedAt)
		for _, tag := range target.Hashtags {
			p.HashtagWeights[tag] += decay
		}
		if key := target.CreatorKey(); key != "" {
			p.LikedCreators[key] = true
		}
		if target.ContentType != "" {
			p.LikedContentTypes[target.ContentType] = true
		}
		if target.CommunityID != nil {
			p.EngagedCommunities[*target.CommunityID] = true
		}
		if target.Origin == post.OriginFederated && target.Domain != "" {
			domainLikes[target.Domain]++
		}
	}

	for domain, n := range domainLikes {
		if n >= FavoriteDomainLikeThreshold {
			p.FavoriteDomains[domain] = true
		}
	}
}

// aggregateViews folds view events into hashtag weights, dwell averages, and
// per-creator view counts.
func (b *Builder) aggregateViews(ctx context.Context, p *Profile, views []engagement.View) {
	dwellSums := make(map[string]float64)
	dwellCounts := make(map[string]int)

	for _, view := range views {
		p.ViewedPosts[view.PostID] = true

		target, err := b.posts.GetByID(ctx, view.PostID)
		if err != nil {
			continue
		}

		decay := b.decayWeight(view.CreatedAt)
		for _, tag := range target.Hashtags {
			p.HashtagWeights[tag] += decay
			if view.DwellTimeMs > HighDwellThresholdMs {
				p.HighDwellHashtags[tag] = true
			}
		}

		key := target.CreatorKey()
		if key == "" {
			continue
		}
		p.ViewCountByCreator[key] += view.ViewCount
		dwellSums[key] += float64(view.DwellTimeMs)
		dwellCounts[key]++
	}

	for key, count := range dwellCounts {
		if count >= MinViewsForDwellAverage {
			p.AvgDwellMsByCreator[key] = dwellSums[key] / float64(count)
		}
	}
}

// aggregateDismissals folds dismissal events into dismissed-post indexes and
// the dismissed-hashtag set.
func (b *Builder) aggregateDismissals(ctx context.Context, p *Profile, dismissals []engagement.Dismissal) {
	tagCounts := make(map[string]int)
	counted := make(map[string]bool) // one hashtag contribution per dismissed post

	for _, d := range dismissals {
		p.DismissedPosts[d.PostID] = true

		if counted[d.PostID] {
			continue
		}
		counted[d.PostID] = true

		target, err := b.posts.GetByID(ctx, d.PostID)
		if err != nil {
			continue
		}
		for _, tag := range target.Hashtags {
			tagCounts[tag]++
		}
	}

	for tag, n := range tagCounts {
		if n >= DismissedHashtagThreshold {
			p.DismissedHashtags[tag] = true
		}
	}
}

// computeIgnoreRates derives dismissals / (views + dismissals) per creator.
func (b *Builder) computeIgnoreRates(ctx context.Context, p *Profile, views []engagement.View, dismissals []engagement.Dismissal) {
	viewCounts := make(map[string]int)
	dismissCounts := make(map[string]int)

	resolve := func(postID string) string {
		target, err := b.posts.GetByID(ctx, postID)
		if err != nil {
			return ""
		}
		return target.CreatorKey()
	}

	for _, v := range views {
		if key := resolve(v.PostID); key != "" {
			viewCounts[key]++
		}
	}
	for _, d := range dismissals {
		if key := resolve(d.PostID); key != "" {
			dismissCounts[key]++
		}
	}

	for key, dismissed := range dismissCounts {
		total := dismissed + viewCounts[key]
		if total > 0 {
			p.IgnoreRateByCreator[key] = float64(dismissed) / float64(total)
		}
	}
}

// decayWeight returns exp(-InterestDecayRate * age_in_days) for an event.
func (b *Builder) decayWeight(at time.Time) float64 {
	ageDays := b.now().Sub(at).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-InterestDecayRate * ageDays)
}

// normalizeWeights scales hashtag weights so the maximum is 1.0.
func normalizeWeights(weights map[string]float64) {
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if max <= 0 {
		return
	}
	for tag, w := range weights {
		weights[tag] = w / max
	}
}
