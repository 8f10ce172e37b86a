// Package engagement provides the engagement event family (likes, views,
// dismissals, votes), the follow/block graph, and creator satisfaction
// records consumed by the feed pipeline and the discussion ranking engine.
package engagement

import (
	"errors"
	"time"
)

// Common errors for engagement operations.
var (
	ErrInvalidVoteType   = errors.New("invalid vote type: must be up or down")
	ErrInvalidDismissal  = errors.New("invalid dismissal type")
	ErrAmbiguousCreator  = errors.New("exactly one of creator user id and remote actor id must be set")
)

// VoteType is the direction of a vote.
type VoteType string

// Vote directions.
const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ValidVoteType reports whether t is a recognized vote direction.
func ValidVoteType(t VoteType) bool {
	return t == VoteUp || t == VoteDown
}

// DismissalType classifies how a user dismissed a post.
type DismissalType string

// Dismissal types. A user may have at most one dismissal row per
// (user, post, type) triple.
const (
	DismissalScrolledPast  DismissalType = "scrolled_past"
	DismissalHidden        DismissalType = "hidden"
	DismissalNotInterested DismissalType = "not_interested"
)

// ValidDismissalType reports whether t is a recognized dismissal type.
func ValidDismissalType(t DismissalType) bool {
	switch t {
	case DismissalScrolledPast, DismissalHidden, DismissalNotInterested:
		return true
	}
	return false
}

// Like records that a user liked a post. At most one row per (user, post).
type Like struct {
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// View records that a user viewed a post, with client-reported dwell signals.
// At most one row per (user, post); repeat views update dwell in place.
type View struct {
	UserID      string    `json:"user_id"`
	PostID      string    `json:"post_id"`
	DwellTimeMs int64     `json:"dwell_time_ms"`
	ScrollDepth float64   `json:"scroll_depth"`
	Completed   bool      `json:"completed"`
	ViewCount   int       `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Dismissal records a negative signal against a post.
type Dismissal struct {
	UserID    string        `json:"user_id"`
	PostID    string        `json:"post_id"`
	Type      DismissalType `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
}

// Vote records a user's vote on a discussion post. At most one row per
// (user, post); switching direction updates the row in place.
type Vote struct {
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	Type      VoteType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowGraph holds the creators a user follows, split by identity namespace.
// Pending follow requests are excluded before this snapshot is built.
type FollowGraph struct {
	UserIDs  map[string]bool // followed local users
	ActorIDs map[string]bool // followed remote actors
}

// CreatorSatisfaction is a per (viewer, creator) aggregate estimating whether
// the viewer's engagement with the creator reflects genuine satisfaction.
// Exactly one of CreatorUserID and RemoteActorID is set.
type CreatorSatisfaction struct {
	ViewerID      string  `json:"viewer_id"`
	CreatorUserID *string `json:"creator_user_id,omitempty"`
	RemoteActorID *string `json:"remote_actor_id,omitempty"`

	FollowedAfterViewing bool  `json:"followed_after_viewing"`
	ContinuedEngagement  bool  `json:"continued_engagement"`
	ImmediateLeave       bool  `json:"immediate_leave"`
	PostsViewed          int   `json:"posts_viewed"`
	DwellTimeMs          int64 `json:"dwell_time_ms"`
}

// Validate enforces the local-XOR-remote creator reference invariant.
func (s *CreatorSatisfaction) Validate() error {
	hasLocal := s.CreatorUserID != nil
	hasRemote := s.RemoteActorID != nil
	if hasLocal == hasRemote {
		return ErrAmbiguousCreator
	}
	return nil
}

// CreatorKey returns the creator key for this record, matching
// post.Post.CreatorKey namespacing.
func (s *CreatorSatisfaction) CreatorKey() string {
	if s.RemoteActorID != nil {
		return "remote:" + *s.RemoteActorID
	}
	if s.CreatorUserID != nil {
		return "local:" + *s.CreatorUserID
	}
	return ""
}

// Score computes the 0..1 satisfaction score for this record:
// base 0.5, +0.3 if the viewer followed the creator after viewing,
// +0.2 for continued engagement, -0.3 for an immediate leave,
// +0.1 if average dwell per viewed post exceeds 30s, clamped to [0, 1].
func (s *CreatorSatisfaction) Score() float64 {
	score := 0.5
	if s.FollowedAfterViewing {
		score += 0.3
	}
	if s.ContinuedEngagement {
		score += 0.2
	}
	if s.ImmediateLeave {
		score -= 0.3
	}
	if s.PostsViewed > 0 && s.DwellTimeMs/int64(s.PostsViewed) > 30000 {
		score += 0.1
	}
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
