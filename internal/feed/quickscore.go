package feed

import (
	"sort"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// ShortlistFactor bounds the full scorer's input: the quick scorer keeps at
// most ShortlistFactor * limit candidates.
const ShortlistFactor = 3

// RecencyMultiplier returns the piecewise recency multiplier shared by the
// quick and full scorers.
func RecencyMultiplier(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 1.15
	case age < 6*time.Hour:
		return 1.10
	case age < 24*time.Hour:
		return 1.0
	case age < 72*time.Hour:
		return 0.9
	case age < 168*time.Hour:
		return 0.7
	default:
		return 0.5
	}
}

// QuickScore computes the cheap O(1) pre-score for one candidate:
// +30 for a followed author, + min(total engagement, 20), +10 for media,
// all multiplied by the recency multiplier. The value only orders the
// shortlist cut; nothing downstream may depend on it.
func QuickScore(p *post.Post, prof *profile.Profile, now time.Time) float64 {
	score := 0.0
	if prof.Follows(p.CreatorKey()) {
		score += 30
	}

	engagement := float64(p.EngagementTotal())
	if engagement > 20 {
		engagement = 20
	}
	score += engagement

	if p.HasMedia() {
		score += 10
	}

	return score * RecencyMultiplier(now.Sub(p.CreatedAt))
}

// Shortlist orders candidates by quick score descending and keeps the top
// ShortlistFactor * limit. The output is always a subset of the input.
func Shortlist(candidates []*post.Post, prof *profile.Profile, limit int, now time.Time) []*post.Post {
	type quickScored struct {
		post  *post.Post
		score float64
	}

	scored := make([]quickScored, len(candidates))
	for i, p := range candidates {
		scored[i] = quickScored{post: p, score: QuickScore(p, prof, now)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	keep := ShortlistFactor * limit
	if keep > len(scored) {
		keep = len(scored)
	}

	out := make([]*post.Post, keep)
	for i := 0; i < keep; i++ {
		out[i] = scored[i].post
	}
	return out
}
