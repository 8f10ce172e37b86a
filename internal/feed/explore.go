package feed

import (
	"math"
	"math/rand"

	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// ExploitShare and ExploreShare control the blend between content matching
// known interests and discovery content.
const (
	ExploitShare = 0.85
	ExploreShare = 0.15
)

// ExploreMinLikes filters the explore pool to posts with baseline social
// proof before sampling.
const ExploreMinLikes = 5

// minInterleaveInterval is the smallest spacing between injected explore
// items in the interleaved feed.
const minInterleaveInterval = 3

// Partition splits scored posts into an exploit pool (matches a known strong
// signal) and an explore pool (everything else). Qualifying posts count as
// exploit: they passed the primary filter before partitioning. Order within
// each pool preserves the incoming score order.
func Partition(scored []ScoredPost, prof *profile.Profile) (exploit, explore []ScoredPost) {
	for _, sp := range scored {
		if isKnownInterest(sp, prof) {
			exploit = append(exploit, sp)
		} else {
			explore = append(explore, sp)
		}
	}
	return exploit, explore
}

// isKnownInterest reports whether a post matches one of the user's strong
// signals: a followed or repeatedly viewed creator, a known hashtag interest,
// a favorite domain, or an unconditional feed qualification.
func isKnownInterest(sp ScoredPost, prof *profile.Profile) bool {
	key := sp.Post.CreatorKey()
	if prof.Follows(key) || prof.ViewCountByCreator[key] >= 3 {
		return true
	}
	for _, tag := range sp.Post.Hashtags {
		if prof.HashtagWeights[tag] > 0 {
			return true
		}
	}
	if sp.Post.Domain != "" && prof.FavoriteDomains[sp.Post.Domain] {
		return true
	}
	return sp.Qualifies
}

// Interleave blends the exploit and explore pools into the final ordering.
// The exploit pool supplies ceil(limit*0.85) posts in score order. The
// explore pool is filtered to posts with at least ExploreMinLikes likes and
// ceil(limit*0.15) of them are sampled uniformly without replacement using
// rng, not taken from the top of the score order, so discovery stays diverse.
// Walking the exploit list, every interval-th position is
// followed by one explore item; leftovers are appended.
func Interleave(exploit, explore []ScoredPost, limit int, rng *rand.Rand) []ScoredPost {
	if limit <= 0 {
		return nil
	}

	exploitCount := int(math.Ceil(float64(limit) * ExploitShare))
	if exploitCount > len(exploit) {
		exploitCount = len(exploit)
	}
	taken := exploit[:exploitCount]

	eligible := make([]ScoredPost, 0, len(explore))
	for _, sp := range explore {
		if sp.Post.LikeCount >= ExploreMinLikes {
			eligible = append(eligible, sp)
		}
	}

	exploreCount := int(math.Ceil(float64(limit) * ExploreShare))
	if exploreCount > len(eligible) {
		exploreCount = len(eligible)
	}
	sampled := sampleWithoutReplacement(eligible, exploreCount, rng)

	if len(sampled) == 0 {
		out := make([]ScoredPost, len(taken))
		copy(out, taken)
		return out
	}

	interval := len(taken) / (len(sampled) + 1)
	if interval < minInterleaveInterval {
		interval = minInterleaveInterval
	}

	out := make([]ScoredPost, 0, len(taken)+len(sampled))
	next := 0
	for i, sp := range taken {
		out = append(out, sp)
		if (i+1)%interval == 0 && next < len(sampled) {
			out = append(out, sampled[next])
			next++
		}
	}
	// Leftover explore items go at the end.
	out = append(out, sampled[next:]...)
	return out
}

// sampleWithoutReplacement draws n items uniformly at random from pool.
// The rng is seeded per request so feeds stay independent and tests can fix
// the sequence.
func sampleWithoutReplacement(pool []ScoredPost, n int, rng *rand.Rand) []ScoredPost {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}

	indices := rng.Perm(len(pool))[:n]
	out := make([]ScoredPost, n)
	for i, idx := range indices {
		out[i] = pool[idx]
	}
	return out
}
