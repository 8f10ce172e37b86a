package engagement

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SignalStore is the engine's view of historical engagement data. Reads never
// fail on absent data: a user or post with no history yields empty results.
type SignalStore interface {
	// LikesByUser returns all likes recorded for a user.
	LikesByUser(ctx context.Context, userID string) ([]Like, error)

	// ViewsByUser returns all views recorded for a user.
	ViewsByUser(ctx context.Context, userID string) ([]View, error)

	// DismissalsByUser returns all dismissals recorded for a user.
	DismissalsByUser(ctx context.Context, userID string) ([]Dismissal, error)

	// Follows returns the user's follow graph, excluding pending requests.
	Follows(ctx context.Context, userID string) (FollowGraph, error)

	// BlockedCreatorKeys returns the bidirectional block list for a user
	// (blocked-by-viewer union blocks-viewer), keyed by creator key.
	BlockedCreatorKeys(ctx context.Context, userID string) (map[string]bool, error)

	// SatisfactionByViewer returns all creator satisfaction records for a viewer.
	SatisfactionByViewer(ctx context.Context, viewerID string) ([]CreatorSatisfaction, error)

	// LikersOf returns the IDs of users who liked a post.
	LikersOf(ctx context.Context, postID string) ([]string, error)

	// GetVote returns the user's vote on a post, or nil when none exists.
	GetVote(ctx context.Context, userID, postID string) (*Vote, error)

	// UpsertVote inserts or replaces the user's vote on a post.
	UpsertVote(ctx context.Context, vote Vote) error

	// DeleteVote removes the user's vote on a post. Deleting an absent vote
	// is a no-op.
	DeleteVote(ctx context.Context, userID, postID string) error

	// VoteTallies recomputes (upvotes, downvotes) for a post from its vote rows.
	VoteTallies(ctx context.Context, postID string) (int, int, error)

	// UpsertLike records a like, returning true when a new row was inserted.
	UpsertLike(ctx context.Context, like Like) (bool, error)

	// DeleteLike removes a like, returning true when a row existed.
	DeleteLike(ctx context.Context, userID, postID string) (bool, error)
}

// voteKey joins user and post IDs with a null byte so IDs containing
// separators cannot collide.
func voteKey(userID, postID string) string {
	return userID + "\x00" + postID
}

// InMemorySignalStore is an in-memory implementation of SignalStore.
// Thread-safe via RWMutex; also serves as the test fixture store.
type InMemorySignalStore struct {
	mu           sync.RWMutex
	likes        map[string]Like // (user,post) -> like
	views        map[string]View
	dismissals   map[string][]Dismissal // (user,post) -> one per type
	votes        map[string]Vote
	follows      map[string]FollowGraph
	blocks       map[string]map[string]bool
	satisfaction map[string][]CreatorSatisfaction
}

// NewInMemorySignalStore creates a new in-memory signal store.
func NewInMemorySignalStore() *InMemorySignalStore {
	return &InMemorySignalStore{
		likes:        make(map[string]Like),
		views:        make(map[string]View),
		dismissals:   make(map[string][]Dismissal),
		votes:        make(map[string]Vote),
		follows:      make(map[string]FollowGraph),
		blocks:       make(map[string]map[string]bool),
		satisfaction: make(map[string][]CreatorSatisfaction),
	}
}

// LikesByUser returns all likes recorded for a user.
func (s *InMemorySignalStore) LikesByUser(ctx context.Context, userID string) ([]Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Like
	for _, l := range s.likes {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sortLikes(out)
	return out, nil
}

// ViewsByUser returns all views recorded for a user.
func (s *InMemorySignalStore) ViewsByUser(ctx context.Context, userID string) ([]View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []View
	for _, v := range s.views {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out, nil
}

// DismissalsByUser returns all dismissals recorded for a user.
func (s *InMemorySignalStore) DismissalsByUser(ctx context.Context, userID string) ([]Dismissal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Dismissal
	for _, ds := range s.dismissals {
		for _, d := range ds {
			if d.UserID == userID {
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostID != out[j].PostID {
			return out[i].PostID < out[j].PostID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// Follows returns the user's follow graph.
func (s *InMemorySignalStore) Follows(ctx context.Context, userID string) (FollowGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.follows[userID]
	if !ok {
		return FollowGraph{UserIDs: map[string]bool{}, ActorIDs: map[string]bool{}}, nil
	}
	out := FollowGraph{UserIDs: make(map[string]bool, len(g.UserIDs)), ActorIDs: make(map[string]bool, len(g.ActorIDs))}
	for k := range g.UserIDs {
		out.UserIDs[k] = true
	}
	for k := range g.ActorIDs {
		out.ActorIDs[k] = true
	}
	return out, nil
}

// BlockedCreatorKeys returns the bidirectional block list for a user.
func (s *InMemorySignalStore) BlockedCreatorKeys(ctx context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool)
	for k := range s.blocks[userID] {
		out[k] = true
	}
	return out, nil
}

// SatisfactionByViewer returns all creator satisfaction records for a viewer.
func (s *InMemorySignalStore) SatisfactionByViewer(ctx context.Context, viewerID string) ([]CreatorSatisfaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.satisfaction[viewerID]
	out := make([]CreatorSatisfaction, len(records))
	copy(out, records)
	return out, nil
}

// LikersOf returns the IDs of users who liked a post.
func (s *InMemorySignalStore) LikersOf(ctx context.Context, postID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, l := range s.likes {
		if l.PostID == postID {
			out = append(out, l.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetVote returns the user's vote on a post, or nil when none exists.
func (s *InMemorySignalStore) GetVote(ctx context.Context, userID, postID string) (*Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[voteKey(userID, postID)]
	if !ok {
		return nil, nil
	}
	cp := v
	return &cp, nil
}

// UpsertVote inserts or replaces the user's vote on a post.
func (s *InMemorySignalStore) UpsertVote(ctx context.Context, vote Vote) error {
	if !ValidVoteType(vote.Type) {
		return ErrInvalidVoteType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now()
	}
	s.votes[voteKey(vote.UserID, vote.PostID)] = vote
	return nil
}

// DeleteVote removes the user's vote on a post.
func (s *InMemorySignalStore) DeleteVote(ctx context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.votes, voteKey(userID, postID))
	return nil
}

// VoteTallies recomputes (upvotes, downvotes) for a post from its vote rows.
func (s *InMemorySignalStore) VoteTallies(ctx context.Context, postID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var up, down int
	for _, v := range s.votes {
		if v.PostID != postID {
			continue
		}
		if v.Type == VoteUp {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

// UpsertLike records a like, returning true when a new row was inserted.
func (s *InMemorySignalStore) UpsertLike(ctx context.Context, like Like) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(like.UserID, like.PostID)
	if _, exists := s.likes[key]; exists {
		return false, nil
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	s.likes[key] = like
	return true, nil
}

// DeleteLike removes a like, returning true when a row existed.
func (s *InMemorySignalStore) DeleteLike(ctx context.Context, userID, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(userID, postID)
	if _, exists := s.likes[key]; !exists {
		return false, nil
	}
	delete(s.likes, key)
	return true, nil
}

// AddView records or replaces a view row (fixture helper).
func (s *InMemorySignalStore) AddView(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if view.ViewCount == 0 {
		view.ViewCount = 1
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}
	s.views[voteKey(view.UserID, view.PostID)] = view
}

// AddDismissal records a dismissal row, enforcing one row per
// (user, post, type) triple.
func (s *InMemorySignalStore) AddDismissal(d Dismissal) error {
	if !ValidDismissalType(d.Type) {
		return ErrInvalidDismissal
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(d.UserID, d.PostID)
	for _, existing := range s.dismissals[key] {
		if existing.Type == d.Type {
			return nil
		}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	s.dismissals[key] = append(s.dismissals[key], d)
	return nil
}

// SetFollows replaces the follow graph for a user (fixture helper).
func (s *InMemorySignalStore) SetFollows(userID string, graph FollowGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[userID] = graph
}

// AddBlock adds a creator key to the user's bidirectional block list
// (fixture helper).
func (s *InMemorySignalStore) AddBlock(userID, creatorKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocks[userID] == nil {
		s.blocks[userID] = make(map[string]bool)
	}
	s.blocks[userID][creatorKey] = true
}

// AddSatisfaction stores a creator satisfaction record after validating the
// local-XOR-remote invariant.
func (s *InMemorySignalStore) AddSatisfaction(record CreatorSatisfaction) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.satisfaction[record.ViewerID] = append(s.satisfaction[record.ViewerID], record)
	return nil
}

// sortLikes orders likes by post ID for deterministic iteration.
func sortLikes(likes []Like) {
	sort.Slice(likes, func(i, j int) bool { return likes[i].PostID < likes[j].PostID })
}
