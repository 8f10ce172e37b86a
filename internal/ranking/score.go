// Package ranking implements the discussion ranking engine: the
// deterministic engagement score used to order discussion threads, the
// none/up/down vote state machine that maintains it, and the periodic batch
// recomputation that corrects counter drift.
package ranking

import (
	"math"
)

// wilsonZ is the z-value for a 95% confidence interval.
const wilsonZ = 1.96

// ScoreInputs are the inputs to the engagement score formula. The score is a
// pure function of these values: given equal inputs the result is
// reproducible bit for bit, which is the ranking contract for hot/best sorts.
type ScoreInputs struct {
	Upvotes       int
	Downvotes     int
	AgeHours      float64
	ReplyCount    int
	ContentLength int // 0 when the post has no text content
	HasLink       bool
}

// WilsonLowerBound computes the lower bound of the 95% Wilson score interval
// for the upvote ratio, scaled to 0..100. It favors high ratios backed by
// enough votes, damping small-sample noise. Zero total votes yield zero.
func WilsonLowerBound(upvotes, downvotes int) float64 {
	n := float64(upvotes + downvotes)
	if n == 0 {
		return 0
	}

	p := float64(upvotes) / n
	z := wilsonZ
	z2 := z * z

	numerator := p + z2/(2*n) - z*math.Sqrt((p*(1-p)+z2/(4*n))/n)
	return numerator / (1 + z2/n) * 100
}

// EngagementScore computes the discussion engagement score:
//
//	base        = wilson * link_modifier
//	engagement  = base + controversy*0.3 + reply_bonus + length_bonus
//	              + freshness_bonus + velocity_bonus
//	final       = engagement / (age_hours + 2)^1.5
//
// with a floor guard of (U-D)/2 when upvotes are more than double downvotes.
func EngagementScore(in ScoreInputs) int {
	up := float64(in.Upvotes)
	down := float64(in.Downvotes)
	total := up + down
	h := in.AgeHours

	wilson := WilsonLowerBound(in.Upvotes, in.Downvotes)

	timeFactor := math.Pow(h+2, 1.5)

	// Controversy rewards contested posts with real volume: the vote ratio
	// balance scaled by total participation.
	controversy := math.Min(up, down) / math.Max(math.Max(up, down), 1) * total * 0.5

	replyBonus := math.Log(math.Max(float64(in.ReplyCount)+1, 1)) * 5

	lengthBonus := math.Min(float64(in.ContentLength)/500, 2)

	linkModifier := 1.0
	if in.HasLink {
		linkModifier = 0.9
	}

	freshnessBonus := 0.0
	if h < 2 {
		freshnessBonus = 10 * (2 - h)
	}

	var votesPerHour float64
	if h > 0 {
		votesPerHour = total / math.Max(h, 0.1)
	} else {
		votesPerHour = total * 10
	}
	velocityBonus := math.Log(math.Max(votesPerHour+1, 1)) * 3

	base := wilson * linkModifier
	engagement := base + controversy*0.3 + replyBonus + lengthBonus + freshnessBonus + velocityBonus
	final := engagement / timeFactor

	// Floor guard: a clearly positive post never ranks below half its net
	// vote margin, regardless of age decay.
	if in.Upvotes > 2*in.Downvotes {
		final = math.Max(final, (up-down)/2)
	}

	return int(math.Round(final))
}

// FallbackScore is the net vote margin, used when the post's metadata is
// unavailable and the full formula cannot run.
func FallbackScore(upvotes, downvotes int) int {
	return upvotes - downvotes
}
