package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
)

func strPtr(s string) *string { return &s }

type engineFixture struct {
	posts   *post.InMemoryRepository
	signals *engagement.InMemorySignalStore
	pub     *MemoryPublisher
	engine  *Engine
	now     time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	posts := post.NewInMemoryRepository()
	signals := engagement.NewInMemorySignalStore()
	pub := NewMemoryPublisher()
	engine := NewEngine(posts, signals, nil, nil, pub).
		WithClock(func() time.Time { return now })
	return &engineFixture{posts: posts, signals: signals, pub: pub, engine: engine, now: now}
}

func (f *engineFixture) addPost(t *testing.T, p *post.Post) {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = f.now.Add(-time.Hour)
	}
	if err := f.posts.Create(context.Background(), p); err != nil {
		t.Fatalf("Create post failed: %v", err)
	}
}

// waitForUpdates polls the memory publisher until it holds n updates; the
// fan-out is fire-and-forget so delivery is asynchronous.
func (f *engineFixture) waitForUpdates(t *testing.T, n int) []ScoreUpdate {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if updates := f.pub.Updates(); len(updates) >= n {
			return updates
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("publisher did not receive %d updates in time", n)
	return nil
}

func TestCastVote_StateMachine(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.addPost(t, &post.Post{ID: "p1", Origin: post.OriginLocal, AuthorUserID: strPtr("author")})

	// none -> up
	state, err := f.engine.CastVote(ctx, "u1", "p1", engagement.VoteUp)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if state != VoteStateUp {
		t.Errorf("state = %v, want up", state)
	}
	p, _ := f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 1 || p.Downvotes != 0 {
		t.Errorf("tallies = (%d, %d), want (1, 0)", p.Upvotes, p.Downvotes)
	}

	// up -> down (direct switch, single row)
	state, err = f.engine.CastVote(ctx, "u1", "p1", engagement.VoteDown)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if state != VoteStateDown {
		t.Errorf("state = %v, want down", state)
	}
	p, _ = f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 0 || p.Downvotes != 1 {
		t.Errorf("tallies after switch = (%d, %d), want (0, 1)", p.Upvotes, p.Downvotes)
	}

	// down -> none (toggle off)
	state, err = f.engine.CastVote(ctx, "u1", "p1", engagement.VoteDown)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if state != VoteStateNone {
		t.Errorf("state = %v, want none", state)
	}
	p, _ = f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 0 || p.Downvotes != 0 {
		t.Errorf("tallies after toggle off = (%d, %d), want (0, 0)", p.Upvotes, p.Downvotes)
	}
	vote, _ := f.signals.GetVote(ctx, "u1", "p1")
	if vote != nil {
		t.Error("expected the vote row to be deleted after toggle off")
	}
}

func TestCastVote_InvalidType(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.addPost(t, &post.Post{ID: "p1", Origin: post.OriginLocal, AuthorUserID: strPtr("author")})

	if _, err := f.engine.CastVote(ctx, "u1", "p1", "sideways"); !errors.Is(err, engagement.ErrInvalidVoteType) {
		t.Errorf("CastVote(invalid) error = %v, want ErrInvalidVoteType", err)
	}

	// Rejection happens before any state change.
	p, _ := f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 0 || p.Downvotes != 0 {
		t.Errorf("tallies after invalid vote = (%d, %d), want (0, 0)", p.Upvotes, p.Downvotes)
	}
}

func TestCastVote_MissingAndDeletedPosts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CastVote(ctx, "u1", "nope", engagement.VoteUp); !errors.Is(err, post.ErrPostNotFound) {
		t.Errorf("CastVote(missing) error = %v, want ErrPostNotFound", err)
	}

	deletedAt := f.now
	f.addPost(t, &post.Post{ID: "gone", Origin: post.OriginLocal, AuthorUserID: strPtr("a"), DeletedAt: &deletedAt})
	if _, err := f.engine.CastVote(ctx, "u1", "gone", engagement.VoteUp); !errors.Is(err, post.ErrPostDeleted) {
		t.Errorf("CastVote(deleted) error = %v, want ErrPostDeleted", err)
	}
}

func TestCastVote_ScoreRefreshed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.addPost(t, &post.Post{
		ID:            "p1",
		Origin:        post.OriginLocal,
		AuthorUserID:  strPtr("author"),
		ReplyCount:    3,
		ContentLength: 200,
		CreatedAt:     f.now.Add(-time.Hour),
	})

	for i := 0; i < 10; i++ {
		if _, err := f.engine.CastVote(ctx, "up"+string(rune('0'+i)), "p1", engagement.VoteUp); err != nil {
			t.Fatalf("CastVote failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := f.engine.CastVote(ctx, "down"+string(rune('0'+i)), "p1", engagement.VoteDown); err != nil {
			t.Fatalf("CastVote failed: %v", err)
		}
	}

	p, _ := f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 10 || p.Downvotes != 2 {
		t.Fatalf("tallies = (%d, %d), want (10, 2)", p.Upvotes, p.Downvotes)
	}
	want := EngagementScore(ScoreInputs{Upvotes: 10, Downvotes: 2, AgeHours: 1, ReplyCount: 3, ContentLength: 200})
	if p.Score != want {
		t.Errorf("Score = %d, want %d", p.Score, want)
	}
}

func TestCastVote_PublishesForCommunityPosts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	comm := "c1"
	f.addPost(t, &post.Post{ID: "in-community", Origin: post.OriginLocal, AuthorUserID: strPtr("a"), CommunityID: &comm})
	f.addPost(t, &post.Post{ID: "standalone", Origin: post.OriginLocal, AuthorUserID: strPtr("a")})

	if _, err := f.engine.CastVote(ctx, "u1", "in-community", engagement.VoteUp); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	updates := f.waitForUpdates(t, 1)
	if updates[0].PostID != "in-community" || updates[0].CommunityID != "c1" {
		t.Errorf("update = %+v, want in-community/c1", updates[0])
	}

	// Posts outside a community publish nothing.
	if _, err := f.engine.CastVote(ctx, "u1", "standalone", engagement.VoteUp); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(f.pub.Updates()); got != 1 {
		t.Errorf("got %d updates after voting on a standalone post, want 1", got)
	}
}

func TestLikeUnlike(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.addPost(t, &post.Post{ID: "p1", Origin: post.OriginLocal, AuthorUserID: strPtr("a")})

	if err := f.engine.Like(ctx, "u1", "p1"); err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	// A repeat like must not double count.
	if err := f.engine.Like(ctx, "u1", "p1"); err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	p, _ := f.posts.GetByID(ctx, "p1")
	if p.LikeCount != 1 {
		t.Errorf("LikeCount = %d after duplicate like, want 1", p.LikeCount)
	}

	if err := f.engine.Unlike(ctx, "u1", "p1"); err != nil {
		t.Fatalf("Unlike failed: %v", err)
	}
	// Unliking again is a no-op.
	if err := f.engine.Unlike(ctx, "u1", "p1"); err != nil {
		t.Fatalf("Unlike failed: %v", err)
	}
	p, _ = f.posts.GetByID(ctx, "p1")
	if p.LikeCount != 0 {
		t.Errorf("LikeCount = %d after unlike, want 0", p.LikeCount)
	}

	if err := f.engine.Like(ctx, "u1", "missing"); !errors.Is(err, post.ErrPostNotFound) {
		t.Errorf("Like(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestRecomputePost(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.addPost(t, &post.Post{ID: "p1", Origin: post.OriginLocal, AuthorUserID: strPtr("a"), CreatedAt: f.now.Add(-time.Hour)})

	// Seed vote rows directly, leaving the cached counters stale.
	for _, u := range []string{"u1", "u2", "u3"} {
		if err := f.signals.UpsertVote(ctx, engagement.Vote{UserID: u, PostID: "p1", Type: engagement.VoteUp}); err != nil {
			t.Fatalf("UpsertVote failed: %v", err)
		}
	}

	score, err := f.engine.RecomputePost(ctx, "p1")
	if err != nil {
		t.Fatalf("RecomputePost failed: %v", err)
	}

	p, _ := f.posts.GetByID(ctx, "p1")
	if p.Upvotes != 3 || p.Downvotes != 0 {
		t.Errorf("tallies = (%d, %d), want (3, 0)", p.Upvotes, p.Downvotes)
	}
	if p.Score != score {
		t.Errorf("persisted score %d != returned score %d", p.Score, score)
	}
}
