package post

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the data operations the ranking engines need from the
// post store. Counter mutations are atomic relative to concurrent mutations
// on the same post; reads never block writes on other posts.
type Repository interface {
	// GetByID retrieves a post by ID, excluding soft-deleted posts.
	GetByID(ctx context.Context, id string) (*Post, error)

	// Create inserts a new post, generating an ID when absent.
	Create(ctx context.Context, p *Post) error

	// ListCandidates retrieves up to query.Limit eligible posts from one
	// origin, ordered by created_at DESC with insertion order breaking ties.
	ListCandidates(ctx context.Context, query CandidateQuery) ([]*Post, error)

	// IncrementCounter atomically adjusts a counter field by delta.
	// The resulting value never goes below zero.
	IncrementCounter(ctx context.Context, id string, field CounterField, delta int) error

	// SetVoteCounts overwrites the cached vote tallies for a post.
	SetVoteCounts(ctx context.Context, id string, upvotes, downvotes int) error

	// SetScore overwrites the cached engagement score for a post.
	SetScore(ctx context.Context, id string, score int) error

	// ListActiveSince returns IDs of posts with vote activity at or after
	// the given instant, for batch score recomputation.
	ListActiveSince(ctx context.Context, since time.Time) ([]string, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; also serves as the test fixture store.
type InMemoryRepository struct {
	mu       sync.RWMutex
	posts    map[string]*Post
	order    map[string]int // post ID -> insertion sequence, for stable ties
	activity map[string]time.Time
	seq      int
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts:    make(map[string]*Post),
		order:    make(map[string]int),
		activity: make(map[string]time.Time),
	}
}

// GetByID retrieves a post by ID, excluding soft-deleted posts.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	if p.DeletedAt != nil {
		return nil, ErrPostDeleted
	}

	cp := *p
	return &cp, nil
}

// Create inserts a new post, generating an ID when absent.
func (r *InMemoryRepository) Create(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.ModerationState == "" {
		p.ModerationState = ModerationUnmoderated
	}

	cp := *p
	r.posts[p.ID] = &cp
	r.order[p.ID] = r.seq
	r.seq++
	return nil
}

// ListCandidates retrieves up to query.Limit eligible posts from one origin,
// ordered by created_at DESC with insertion order breaking ties.
func (r *InMemoryRepository) ListCandidates(ctx context.Context, query CandidateQuery) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Post
	for _, p := range r.posts {
		if query.matches(p) {
			matched = append(matched, p)
		}
	}

	// created_at DESC, insertion order ASC for ties. SortStable keeps equal
	// elements in a deterministic order across calls.
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return r.order[matched[i].ID] < r.order[matched[j].ID]
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}

	copies := make([]*Post, len(matched))
	for i, p := range matched {
		cp := *p
		copies[i] = &cp
	}
	return copies, nil
}

// IncrementCounter atomically adjusts a counter field by delta.
func (r *InMemoryRepository) IncrementCounter(ctx context.Context, id string, field CounterField, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}

	bump := func(v int) int {
		v += delta
		if v < 0 {
			v = 0
		}
		return v
	}

	switch field {
	case FieldLikeCount:
		p.LikeCount = bump(p.LikeCount)
	case FieldReplyCount:
		p.ReplyCount = bump(p.ReplyCount)
	case FieldShareCount:
		p.ShareCount = bump(p.ShareCount)
	case FieldUpvotes:
		p.Upvotes = bump(p.Upvotes)
	case FieldDownvotes:
		p.Downvotes = bump(p.Downvotes)
	}
	r.activity[id] = time.Now()
	return nil
}

// SetVoteCounts overwrites the cached vote tallies for a post.
func (r *InMemoryRepository) SetVoteCounts(ctx context.Context, id string, upvotes, downvotes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Upvotes = upvotes
	p.Downvotes = downvotes
	r.activity[id] = time.Now()
	return nil
}

// SetScore overwrites the cached engagement score for a post.
func (r *InMemoryRepository) SetScore(ctx context.Context, id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Score = score
	return nil
}

// ListActiveSince returns IDs of posts with vote activity at or after since.
func (r *InMemoryRepository) ListActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, at := range r.activity {
		if !at.Before(since) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
