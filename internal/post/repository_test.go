package post

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	p := &Post{Origin: OriginLocal, AuthorUserID: strPtr("u1"), Visibility: VisibilityPublic}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected Create to generate an ID")
	}
	if p.ModerationState != ModerationUnmoderated {
		t.Errorf("ModerationState = %q, want %q", p.ModerationState, ModerationUnmoderated)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	// The returned post is a copy; mutating it must not affect the store.
	got.LikeCount = 99
	again, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.LikeCount != 0 {
		t.Errorf("LikeCount = %d after mutating a returned copy, want 0", again.LikeCount)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrPostNotFound", err)
	}

	now := time.Now()
	deleted := &Post{Origin: OriginLocal, AuthorUserID: strPtr("u1"), DeletedAt: &now}
	if err := repo.Create(ctx, deleted); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, deleted.ID); !errors.Is(err, ErrPostDeleted) {
		t.Errorf("GetByID(deleted) error = %v, want ErrPostDeleted", err)
	}
}

func TestInMemoryRepository_ListCandidatesOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	base := time.Now().Add(-time.Hour)

	// p1 and p2 share a timestamp; insertion order must break the tie.
	posts := []*Post{
		{ID: "p1", Origin: OriginLocal, AuthorUserID: strPtr("a"), Visibility: VisibilityPublic, ModerationState: ModerationApproved, CreatedAt: base},
		{ID: "p2", Origin: OriginLocal, AuthorUserID: strPtr("b"), Visibility: VisibilityPublic, ModerationState: ModerationApproved, CreatedAt: base},
		{ID: "p3", Origin: OriginLocal, AuthorUserID: strPtr("c"), Visibility: VisibilityPublic, ModerationState: ModerationApproved, CreatedAt: base.Add(time.Minute)},
	}
	for _, p := range posts {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) failed: %v", p.ID, err)
		}
	}

	got, err := repo.ListCandidates(ctx, CandidateQuery{
		Origin:       OriginLocal,
		CreatedAfter: base.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}

	wantOrder := []string{"p3", "p1", "p2"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d candidates, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("candidate[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestInMemoryRepository_ListCandidatesLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		p := &Post{
			Origin:          OriginLocal,
			AuthorUserID:    strPtr("a"),
			Visibility:      VisibilityPublic,
			ModerationState: ModerationApproved,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListCandidates(ctx, CandidateQuery{
		Origin:       OriginLocal,
		Limit:        3,
		CreatedAfter: base.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d candidates, want 3", len(got))
	}
}

func TestInMemoryRepository_IncrementCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	p := &Post{ID: "p1", Origin: OriginLocal, AuthorUserID: strPtr("a")}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.IncrementCounter(ctx, "p1", FieldLikeCount, 2); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, "p1")
	if got.LikeCount != 2 {
		t.Errorf("LikeCount = %d, want 2", got.LikeCount)
	}

	// Decrements floor at zero.
	if err := repo.IncrementCounter(ctx, "p1", FieldLikeCount, -5); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, "p1")
	if got.LikeCount != 0 {
		t.Errorf("LikeCount = %d after underflow, want 0", got.LikeCount)
	}

	if err := repo.IncrementCounter(ctx, "missing", FieldLikeCount, 1); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("IncrementCounter(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestInMemoryRepository_ListActiveSince(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	for _, id := range []string{"p1", "p2", "p3"} {
		p := &Post{ID: id, Origin: OriginLocal, AuthorUserID: strPtr("a")}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	cutoff := time.Now()

	// Vote activity touches p1 and p2; a bare score write on p3 does not.
	if err := repo.SetVoteCounts(ctx, "p1", 1, 0); err != nil {
		t.Fatalf("SetVoteCounts failed: %v", err)
	}
	if err := repo.IncrementCounter(ctx, "p2", FieldUpvotes, 1); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if err := repo.SetScore(ctx, "p3", 42); err != nil {
		t.Fatalf("SetScore failed: %v", err)
	}

	ids, err := repo.ListActiveSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListActiveSince failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("ListActiveSince = %v, want [p1 p2]", ids)
	}
}
