package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// MinRetainScore is the full-score threshold below which a post is dropped
// unless it qualifies for the feed unconditionally.
const MinRetainScore = 10.0

// Dwell thresholds (ms) for the creator affinity ladder.
const (
	dwellHighMs   = 30000
	dwellMediumMs = 10000
	dwellLowMs    = 3000
)

// ScoredPost pairs a candidate with its final feed score.
type ScoredPost struct {
	Post      *post.Post
	Score     float64
	Qualifies bool
}

// FullScorer applies the expensive multi-factor scoring pass to the
// shortlist. Each factor produces an independently capped sub-score; the
// calibrated weight rescales a factor's contribution relative to its
// contract cap (weight == cap leaves the raw points unchanged).
type FullScorer struct {
	signals engagement.SignalStore
	weights *Weights
	logger  *slog.Logger
	now     func() time.Time
}

// NewFullScorer creates a full scorer. Nil weights fall back to defaults.
func NewFullScorer(signals engagement.SignalStore, weights *Weights, logger *slog.Logger) *FullScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FullScorer{
		signals: signals,
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the scorer's time source (used by tests).
func (s *FullScorer) WithClock(now func() time.Time) *FullScorer {
	s.now = now
	return s
}

// Score computes final scores for the shortlist and returns retained posts
// ordered by score descending. A post is retained when its score reaches
// MinRetainScore or it qualifies unconditionally; qualification bypasses the
// threshold, never the sort.
func (s *FullScorer) Score(ctx context.Context, shortlist []*post.Post, prof *profile.Profile, userID string) ([]ScoredPost, error) {
	now := s.now()
	scored := make([]ScoredPost, 0, len(shortlist))

	for _, p := range shortlist {
		collaborative, err := s.collaborativeScore(ctx, p, prof)
		if err != nil {
			return nil, fmt.Errorf("failed to score post %s: %w", p.ID, err)
		}

		w := s.weights
		sum := scaled(s.creatorAffinityScore(p, prof), w.CreatorAffinity, 40) +
			scaled(s.contentSimilarityScore(p, prof), w.ContentSimilarity, 30) +
			scaled(collaborative, w.Collaborative, 25) +
			scaled(s.trendingVelocityScore(p, now), w.TrendingVelocity, 20) +
			scaled(s.mediaScore(p), w.Media, 15) +
			scaled(s.domainAffinityScore(p, prof), w.DomainAffinity, 15) +
			scaled(s.engagementQualityScore(p), w.EngagementQuality, 10) +
			scaled(s.sessionRelevanceScore(p, prof), w.SessionRelevance, 20) +
			scaled(s.creatorSatisfactionScore(p, prof), w.CreatorSatisfaction, 15)

		score := sum * RecencyMultiplier(now.Sub(p.CreatedAt))
		score = s.applyPenalties(score, p, prof, userID)

		qualifies := QualifiesForFeed(p, prof)
		if score < MinRetainScore && !qualifies {
			continue
		}
		scored = append(scored, ScoredPost{Post: p, Score: score, Qualifies: qualifies})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

// scaled rescales a raw capped sub-score by the calibrated weight relative to
// the contract cap.
func scaled(raw, weight, contractCap float64) float64 {
	if contractCap <= 0 {
		return 0
	}
	return raw * (weight / contractCap)
}

// creatorAffinityScore covers the follow relationship and dwell-time history
// with this creator. Capped at 40.
func (s *FullScorer) creatorAffinityScore(p *post.Post, prof *profile.Profile) float64 {
	key := p.CreatorKey()
	if prof.Follows(key) {
		return 40
	}

	dwell := prof.AvgDwellMsByCreator[key]
	switch {
	case dwell > dwellHighMs:
		return 35
	case dwell > dwellMediumMs:
		return 25
	case dwell > dwellLowMs:
		return 15
	case prof.LikedCreators[key]:
		return 20
	case prof.ViewCountByCreator[key] >= 3:
		return 10
	case p.Origin == post.OriginFederated:
		return 8
	default:
		return 0
	}
}

// contentSimilarityScore combines decayed hashtag interest, high-dwell
// hashtag matches, and category/community matches. Capped at 30.
func (s *FullScorer) contentSimilarityScore(p *post.Post, prof *profile.Profile) float64 {
	score := 0.0
	for _, tag := range p.Hashtags {
		score += prof.HashtagWeights[tag] * 10
		if prof.HighDwellHashtags[tag] {
			score += 5
		}
	}
	if p.ContentType != "" && prof.LikedContentTypes[p.ContentType] {
		score += 15
	}
	if p.CommunityID != nil && prof.EngagedCommunities[*p.CommunityID] {
		score += 15
	}
	if score > 30 {
		score = 30
	}
	return score
}

// collaborativeScore awards 25 points when a followed user liked the post.
func (s *FullScorer) collaborativeScore(ctx context.Context, p *post.Post, prof *profile.Profile) (float64, error) {
	if !prof.FollowsAnyone() {
		return 0, nil
	}
	likers, err := s.signals.LikersOf(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	for _, liker := range likers {
		if prof.FollowedUsers[liker] {
			return 25, nil
		}
	}
	return 0, nil
}

// trendingVelocityScore rewards posts younger than 24h by engagement
// velocity: (likes + 2*replies + 3*shares) / max(age_hours, 1). Capped at 20.
func (s *FullScorer) trendingVelocityScore(p *post.Post, now time.Time) float64 {
	age := now.Sub(p.CreatedAt)
	if age >= 24*time.Hour {
		return 0
	}

	ageHours := age.Hours()
	if ageHours < 1 {
		ageHours = 1
	}
	velocity := float64(p.LikeCount+2*p.ReplyCount+3*p.ShareCount) / ageHours

	switch {
	case velocity > 50:
		return 20
	case velocity > 25:
		return 15
	case velocity > 10:
		return 10
	case velocity > 5:
		return 8
	case velocity > 1:
		return 5
	default:
		return 0
	}
}

// mediaScore ladders by attachment count and type; a link preview image is
// worth a consolation 5. Capped at 15.
func (s *FullScorer) mediaScore(p *post.Post) float64 {
	switch {
	case p.MediaCount >= 3:
		return 15
	case p.MediaCount == 2:
		return 12
	case p.MediaCount == 1 && p.ContentType == "video":
		return 12
	case p.MediaCount == 1:
		return 8
	case p.LinkPreviewImage:
		return 5
	default:
		return 0
	}
}

// domainAffinityScore applies to federated posts only: favorite domains earn
// 15, any other federated domain a baseline 5.
func (s *FullScorer) domainAffinityScore(p *post.Post, prof *profile.Profile) float64 {
	if p.Origin != post.OriginFederated {
		return 0
	}
	if prof.FavoriteDomains[p.Domain] {
		return 15
	}
	return 5
}

// engagementQualityScore ladders by total engagement. Capped at 10.
func (s *FullScorer) engagementQualityScore(p *post.Post) float64 {
	total := p.EngagementTotal()
	switch {
	case total > 100:
		return 10
	case total > 50:
		return 8
	case total > 20:
		return 6
	case total > 10:
		return 4
	case total >= 5:
		return 2
	default:
		return 0
	}
}

// sessionRelevanceScore rewards overlap with the current session's liked
// hashtags (up to 15) and creators (10), boosted 10% when the session
// engagement rate exceeds 0.3. Capped at 20.
func (s *FullScorer) sessionRelevanceScore(p *post.Post, prof *profile.Profile) float64 {
	score := 0.0

	hashtagPoints := 0.0
	for _, tag := range p.Hashtags {
		if prof.SessionLikedHashtags[tag] {
			hashtagPoints += 5
		}
	}
	if hashtagPoints > 15 {
		hashtagPoints = 15
	}
	score += hashtagPoints

	if prof.SessionLikedCreators[p.CreatorKey()] {
		score += 10
	}

	if prof.Session.EngagementRate > 0.3 {
		score *= 1.1
	}
	if score > 20 {
		score = 20
	}
	return score
}

// creatorSatisfactionScore maps the 0..1 satisfaction score onto 15 points.
func (s *FullScorer) creatorSatisfactionScore(p *post.Post, prof *profile.Profile) float64 {
	return prof.SatisfactionByCreator[p.CreatorKey()] * 15
}

// applyPenalties applies the negative-signal multipliers in contract order.
func (s *FullScorer) applyPenalties(score float64, p *post.Post, prof *profile.Profile, userID string) float64 {
	if userID != "" && p.AuthoredBy(userID) {
		score *= 0.1
	}
	if prof.ViewedPosts[p.ID] {
		score *= 0.3
	}
	if prof.SessionViewed[p.ID] {
		score *= 0.1
	}
	if prof.DismissedPosts[p.ID] {
		score *= 0.05
	}
	if rate := prof.IgnoreRateByCreator[p.CreatorKey()]; rate > 0 {
		score *= 1.0 - 0.5*rate
	}
	for _, tag := range p.Hashtags {
		if prof.DismissedHashtags[tag] {
			score *= 0.9
		}
	}
	return score
}

// QualifiesForFeed reports whether a post is unconditionally retained
// regardless of its score: its creator is followed (local or federated), it
// has meaningful engagement, or it carries media with at least two likes.
func QualifiesForFeed(p *post.Post, prof *profile.Profile) bool {
	if prof.Follows(p.CreatorKey()) {
		return true
	}
	if p.EngagementTotal() >= 5 {
		return true
	}
	if p.HasMedia() && p.LikeCount >= 2 {
		return true
	}
	return false
}
