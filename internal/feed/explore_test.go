package feed

import (
	"math/rand"
	"testing"

	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

func scoredFixture(id, author string, likes int) ScoredPost {
	return ScoredPost{
		Post: &post.Post{ID: id, AuthorUserID: strPtr(author), LikeCount: likes},
	}
}

func TestPartition(t *testing.T) {
	prof := profile.Empty()
	prof.FollowedUsers["followed"] = true
	prof.ViewCountByCreator["local:regular"] = 3
	prof.HashtagWeights["synth"] = 0.4
	prof.FavoriteDomains["music.example"] = true

	known := []ScoredPost{
		scoredFixture("followed-post", "followed", 0),
		scoredFixture("regular-post", "regular", 0),
		{Post: &post.Post{ID: "tagged", AuthorUserID: strPtr("x"), Hashtags: []string{"synth"}}},
		{Post: &post.Post{ID: "domained", Origin: post.OriginFederated, RemoteActorID: strPtr("a"), Domain: "music.example"}},
		{Post: &post.Post{ID: "qualified", AuthorUserID: strPtr("y")}, Qualifies: true},
	}
	unknown := []ScoredPost{
		scoredFixture("stranger-post", "stranger", 10),
	}

	exploit, explore := Partition(append(known, unknown...), prof)
	if len(exploit) != len(known) {
		t.Errorf("exploit pool = %d posts, want %d", len(exploit), len(known))
	}
	if len(explore) != 1 || explore[0].Post.ID != "stranger-post" {
		t.Errorf("explore pool = %+v, want only stranger-post", explore)
	}
}

func TestInterleave_Shares(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var exploit, explore []ScoredPost
	for i := 0; i < 40; i++ {
		exploit = append(exploit, scoredFixture("e", "a", 0))
	}
	for i := 0; i < 40; i++ {
		explore = append(explore, scoredFixture("x", "b", ExploreMinLikes))
	}

	out := Interleave(exploit, explore, 20, rng)

	var exploitCount, exploreCount int
	for _, sp := range out {
		switch sp.Post.ID {
		case "e":
			exploitCount++
		case "x":
			exploreCount++
		}
	}
	// ceil(20*0.85) = 17 exploit, ceil(20*0.15) = 3 explore.
	if exploitCount != 17 {
		t.Errorf("exploit count = %d, want 17", exploitCount)
	}
	if exploreCount != 3 {
		t.Errorf("explore count = %d, want 3", exploreCount)
	}
}

func TestInterleave_MinLikesFilter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	exploit := []ScoredPost{scoredFixture("e", "a", 0)}
	explore := []ScoredPost{
		scoredFixture("unproven", "b", ExploreMinLikes-1),
	}

	out := Interleave(exploit, explore, 10, rng)
	for _, sp := range out {
		if sp.Post.ID == "unproven" {
			t.Error("explore item below the like threshold must not be sampled")
		}
	}
}

func TestInterleave_Spacing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var exploit []ScoredPost
	for i := 0; i < 17; i++ {
		exploit = append(exploit, scoredFixture("e", "a", 0))
	}
	explore := []ScoredPost{
		scoredFixture("x", "b", 10),
		scoredFixture("x", "b", 10),
		scoredFixture("x", "b", 10),
	}

	out := Interleave(exploit, explore, 20, rng)

	// interval = 17 / (3+1) = 4: explore items land after positions 4, 8, 12
	// of the exploit walk, never adjacent.
	var lastExplore int = -10
	for i, sp := range out {
		if sp.Post.ID == "x" {
			if i-lastExplore < minInterleaveInterval {
				t.Errorf("explore items at positions %d and %d, closer than %d", lastExplore, i, minInterleaveInterval)
			}
			lastExplore = i
		}
	}
}

func TestInterleave_Deterministic(t *testing.T) {
	var exploit, explore []ScoredPost
	for i := 0; i < 20; i++ {
		exploit = append(exploit, scoredFixture("e", "a", 0))
	}
	for i := 0; i < 20; i++ {
		explore = append(explore, ScoredPost{Post: &post.Post{
			ID:           string(rune('a' + i)),
			AuthorUserID: strPtr("b"),
			LikeCount:    10,
		}})
	}

	first := Interleave(exploit, explore, 20, rand.New(rand.NewSource(42)))
	second := Interleave(exploit, explore, 20, rand.New(rand.NewSource(42)))

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Post.ID != second[i].Post.ID {
			t.Fatalf("same seed produced different orderings at index %d", i)
		}
	}
}

func TestInterleave_EmptyPools(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	exploit := []ScoredPost{scoredFixture("e", "a", 0)}
	out := Interleave(exploit, nil, 10, rng)
	if len(out) != 1 || out[0].Post.ID != "e" {
		t.Errorf("Interleave with empty explore = %+v, want exploit passthrough", out)
	}

	explore := []ScoredPost{scoredFixture("x", "b", 10)}
	out = Interleave(nil, explore, 10, rng)
	if len(out) != 1 || out[0].Post.ID != "x" {
		t.Errorf("Interleave with empty exploit = %+v, want explore appended", out)
	}

	if out = Interleave(exploit, explore, 0, rng); out != nil {
		t.Errorf("Interleave with zero limit = %+v, want nil", out)
	}
}
