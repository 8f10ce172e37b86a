package engagement

import (
	"context"
	"errors"
	"testing"
)

func TestInMemorySignalStore_Votes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySignalStore()

	got, err := store.GetVote(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("GetVote failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetVote on empty store = %+v, want nil", got)
	}

	if err := store.UpsertVote(ctx, Vote{UserID: "u1", PostID: "p1", Type: VoteUp}); err != nil {
		t.Fatalf("UpsertVote failed: %v", err)
	}
	got, err = store.GetVote(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("GetVote failed: %v", err)
	}
	if got == nil || got.Type != VoteUp {
		t.Fatalf("GetVote = %+v, want up vote", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected UpsertVote to stamp CreatedAt")
	}

	// Switching direction replaces the row, never adds one.
	if err := store.UpsertVote(ctx, Vote{UserID: "u1", PostID: "p1", Type: VoteDown}); err != nil {
		t.Fatalf("UpsertVote failed: %v", err)
	}
	up, down, err := store.VoteTallies(ctx, "p1")
	if err != nil {
		t.Fatalf("VoteTallies failed: %v", err)
	}
	if up != 0 || down != 1 {
		t.Errorf("tallies after switch = (%d, %d), want (0, 1)", up, down)
	}

	if err := store.UpsertVote(ctx, Vote{UserID: "u2", PostID: "p1", Type: VoteUp}); err != nil {
		t.Fatalf("UpsertVote failed: %v", err)
	}
	up, down, _ = store.VoteTallies(ctx, "p1")
	if up != 1 || down != 1 {
		t.Errorf("tallies = (%d, %d), want (1, 1)", up, down)
	}

	if err := store.DeleteVote(ctx, "u1", "p1"); err != nil {
		t.Fatalf("DeleteVote failed: %v", err)
	}
	up, down, _ = store.VoteTallies(ctx, "p1")
	if up != 1 || down != 0 {
		t.Errorf("tallies after delete = (%d, %d), want (1, 0)", up, down)
	}

	// Deleting an absent vote is a no-op.
	if err := store.DeleteVote(ctx, "u1", "p1"); err != nil {
		t.Errorf("DeleteVote of absent vote returned %v, want nil", err)
	}

	if err := store.UpsertVote(ctx, Vote{UserID: "u1", PostID: "p1", Type: "sideways"}); !errors.Is(err, ErrInvalidVoteType) {
		t.Errorf("UpsertVote(invalid) error = %v, want ErrInvalidVoteType", err)
	}
}

func TestInMemorySignalStore_Likes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySignalStore()

	inserted, err := store.UpsertLike(ctx, Like{UserID: "u1", PostID: "p1"})
	if err != nil {
		t.Fatalf("UpsertLike failed: %v", err)
	}
	if !inserted {
		t.Error("expected first UpsertLike to insert")
	}

	inserted, err = store.UpsertLike(ctx, Like{UserID: "u1", PostID: "p1"})
	if err != nil {
		t.Fatalf("UpsertLike failed: %v", err)
	}
	if inserted {
		t.Error("expected duplicate UpsertLike to be a no-op")
	}

	if _, err := store.UpsertLike(ctx, Like{UserID: "u2", PostID: "p1"}); err != nil {
		t.Fatalf("UpsertLike failed: %v", err)
	}
	if _, err := store.UpsertLike(ctx, Like{UserID: "u1", PostID: "p2"}); err != nil {
		t.Fatalf("UpsertLike failed: %v", err)
	}

	likers, err := store.LikersOf(ctx, "p1")
	if err != nil {
		t.Fatalf("LikersOf failed: %v", err)
	}
	if len(likers) != 2 || likers[0] != "u1" || likers[1] != "u2" {
		t.Errorf("LikersOf(p1) = %v, want [u1 u2]", likers)
	}

	likes, err := store.LikesByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("LikesByUser failed: %v", err)
	}
	if len(likes) != 2 {
		t.Errorf("LikesByUser(u1) returned %d likes, want 2", len(likes))
	}

	removed, err := store.DeleteLike(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("DeleteLike failed: %v", err)
	}
	if !removed {
		t.Error("expected DeleteLike to report removal")
	}
	removed, err = store.DeleteLike(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("DeleteLike failed: %v", err)
	}
	if removed {
		t.Error("expected second DeleteLike to be a no-op")
	}
}

func TestInMemorySignalStore_Dismissals(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySignalStore()

	if err := store.AddDismissal(Dismissal{UserID: "u1", PostID: "p1", Type: DismissalHidden}); err != nil {
		t.Fatalf("AddDismissal failed: %v", err)
	}
	// Duplicate (user, post, type) is a no-op.
	if err := store.AddDismissal(Dismissal{UserID: "u1", PostID: "p1", Type: DismissalHidden}); err != nil {
		t.Fatalf("AddDismissal failed: %v", err)
	}
	// A different type on the same post is a new row.
	if err := store.AddDismissal(Dismissal{UserID: "u1", PostID: "p1", Type: DismissalNotInterested}); err != nil {
		t.Fatalf("AddDismissal failed: %v", err)
	}

	ds, err := store.DismissalsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DismissalsByUser failed: %v", err)
	}
	if len(ds) != 2 {
		t.Errorf("got %d dismissals, want 2", len(ds))
	}

	if err := store.AddDismissal(Dismissal{UserID: "u1", PostID: "p1", Type: "vaporized"}); !errors.Is(err, ErrInvalidDismissal) {
		t.Errorf("AddDismissal(invalid) error = %v, want ErrInvalidDismissal", err)
	}
}

func TestInMemorySignalStore_FollowsAndBlocks(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySignalStore()

	// Absent user yields empty, non-nil maps.
	g, err := store.Follows(ctx, "u1")
	if err != nil {
		t.Fatalf("Follows failed: %v", err)
	}
	if g.UserIDs == nil || g.ActorIDs == nil {
		t.Fatal("expected non-nil follow graph maps")
	}
	if len(g.UserIDs) != 0 || len(g.ActorIDs) != 0 {
		t.Errorf("expected empty follow graph, got %+v", g)
	}

	store.SetFollows("u1", FollowGraph{
		UserIDs:  map[string]bool{"friend": true},
		ActorIDs: map[string]bool{"actor": true},
	})
	g, _ = store.Follows(ctx, "u1")
	if !g.UserIDs["friend"] || !g.ActorIDs["actor"] {
		t.Errorf("Follows(u1) = %+v, missing expected entries", g)
	}

	store.AddBlock("u1", "local:troll")
	blocks, err := store.BlockedCreatorKeys(ctx, "u1")
	if err != nil {
		t.Fatalf("BlockedCreatorKeys failed: %v", err)
	}
	if !blocks["local:troll"] {
		t.Errorf("BlockedCreatorKeys(u1) = %v, want local:troll blocked", blocks)
	}
}

func TestInMemorySignalStore_Satisfaction(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySignalStore()

	if err := store.AddSatisfaction(CreatorSatisfaction{ViewerID: "v1"}); !errors.Is(err, ErrAmbiguousCreator) {
		t.Errorf("AddSatisfaction(no creator) error = %v, want ErrAmbiguousCreator", err)
	}

	record := CreatorSatisfaction{ViewerID: "v1", CreatorUserID: strPtr("c1"), ContinuedEngagement: true}
	if err := store.AddSatisfaction(record); err != nil {
		t.Fatalf("AddSatisfaction failed: %v", err)
	}

	records, err := store.SatisfactionByViewer(ctx, "v1")
	if err != nil {
		t.Fatalf("SatisfactionByViewer failed: %v", err)
	}
	if len(records) != 1 || records[0].CreatorKey() != "local:c1" {
		t.Errorf("SatisfactionByViewer = %+v, want one record for local:c1", records)
	}
}
