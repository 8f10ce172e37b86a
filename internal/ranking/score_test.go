package ranking

import (
	"math"
	"testing"
)

func TestWilsonLowerBound(t *testing.T) {
	if got := WilsonLowerBound(0, 0); got != 0 {
		t.Errorf("WilsonLowerBound(0, 0) = %v, want 0", got)
	}

	// More votes at the same ratio push the bound up.
	one := WilsonLowerBound(1, 0)
	ten := WilsonLowerBound(10, 0)
	hundred := WilsonLowerBound(100, 0)
	if !(one < ten && ten < hundred) {
		t.Errorf("bound not monotone in volume: %v, %v, %v", one, ten, hundred)
	}

	// A single upvote is heavily damped.
	if one > 25 {
		t.Errorf("WilsonLowerBound(1, 0) = %v, want well below the raw ratio", one)
	}
	if hundred < 95 {
		t.Errorf("WilsonLowerBound(100, 0) = %v, want above 95", hundred)
	}

	// All-downvote posts bound to zero-ish.
	if got := WilsonLowerBound(0, 10); got > 1 {
		t.Errorf("WilsonLowerBound(0, 10) = %v, want near 0", got)
	}

	// Symmetric inputs give a bound below 50.
	if got := WilsonLowerBound(5, 5); got >= 50 {
		t.Errorf("WilsonLowerBound(5, 5) = %v, want below 50", got)
	}
}

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreInputs
		want int
	}{
		{
			"no votes no content",
			ScoreInputs{AgeHours: 5},
			0,
		},
		{
			// wilson ~55.2, controversy 0.36, replies ln(4)*5 ~6.93,
			// length 0.4, freshness 10, velocity ln(13)*3 ~7.69;
			// total ~80.58 over (1+2)^1.5 ~5.196 -> ~15.51.
			"well-received hour-old post",
			ScoreInputs{Upvotes: 10, Downvotes: 2, AgeHours: 1, ReplyCount: 3, ContentLength: 200},
			16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EngagementScore(tt.in); got != tt.want {
				t.Errorf("EngagementScore(%+v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEngagementScore_Deterministic(t *testing.T) {
	in := ScoreInputs{Upvotes: 42, Downvotes: 7, AgeHours: 3.5, ReplyCount: 12, ContentLength: 900, HasLink: true}
	first := EngagementScore(in)
	for i := 0; i < 10; i++ {
		if got := EngagementScore(in); got != first {
			t.Fatalf("EngagementScore not deterministic: %d then %d", first, got)
		}
	}
}

func TestEngagementScore_LinkModifier(t *testing.T) {
	base := ScoreInputs{Upvotes: 50, Downvotes: 5, AgeHours: 1}
	linked := base
	linked.HasLink = true

	if EngagementScore(linked) > EngagementScore(base) {
		t.Error("expected the link modifier to never raise the score")
	}
}

func TestEngagementScore_FloorGuard(t *testing.T) {
	// Very old post: decay would crush the score, but upvotes more than double
	// downvotes, so the floor holds at (U-D)/2.
	in := ScoreInputs{Upvotes: 100, Downvotes: 10, AgeHours: 10000}
	want := (100 - 10) / 2
	if got := EngagementScore(in); got != want {
		t.Errorf("EngagementScore(old positive) = %d, want floor %d", got, want)
	}

	// Without the 2x margin the floor does not apply.
	contested := ScoreInputs{Upvotes: 100, Downvotes: 60, AgeHours: 10000}
	if got := EngagementScore(contested); got >= 20 {
		t.Errorf("EngagementScore(old contested) = %d, want decayed near 0", got)
	}
}

func TestEngagementScore_FreshnessDecay(t *testing.T) {
	// Same votes, increasing age: score never goes up with age.
	prev := math.MaxInt
	for _, h := range []float64{0.5, 1, 2, 6, 24, 72} {
		got := EngagementScore(ScoreInputs{Upvotes: 3, Downvotes: 2, AgeHours: h})
		if got > prev {
			t.Fatalf("score rose with age at %vh: %d > %d", h, got, prev)
		}
		prev = got
	}
}

func TestFallbackScore(t *testing.T) {
	if got := FallbackScore(7, 3); got != 4 {
		t.Errorf("FallbackScore(7, 3) = %d, want 4", got)
	}
	if got := FallbackScore(1, 5); got != -4 {
		t.Errorf("FallbackScore(1, 5) = %d, want -4", got)
	}
}
