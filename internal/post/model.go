// Package post provides the post model and repositories used by the feed
// pipeline and the discussion ranking engine. Posts from the local timeline
// and from federated instances are normalized into a single representation
// tagged with their origin.
package post

import (
	"errors"
	"time"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostDeleted  = errors.New("post has been deleted")
)

// Origin identifies which source a post came from.
type Origin string

// Post origins.
const (
	OriginLocal     Origin = "local"
	OriginFederated Origin = "federated"
)

// Visibility controls who may see a post.
type Visibility string

// Post visibility levels.
const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityFriends   Visibility = "friends"
	VisibilityPrivate   Visibility = "private"
	VisibilityUnlisted  Visibility = "unlisted"
)

// Moderation states that keep a post eligible for candidate retrieval.
const (
	ModerationApproved    = "approved"
	ModerationUnmoderated = "unmoderated"
)

// Post represents a candidate post for ranking. Exactly one of AuthorUserID
// and RemoteActorID is set, matching the post's origin. Counters are adjusted
// via atomic increments through the repository; Score is a cache of the
// ranking formula output, never authoritative state.
type Post struct {
	ID     string `json:"id"`
	Origin Origin `json:"origin"`

	// Author reference: local user XOR remote actor.
	AuthorUserID  *string `json:"author_user_id,omitempty"`
	RemoteActorID *string `json:"remote_actor_id,omitempty"`

	Visibility      Visibility `json:"visibility"`
	ContentType     string     `json:"content_type"`
	ModerationState string     `json:"moderation_state"`

	// Engagement counters.
	LikeCount  int `json:"like_count"`
	ReplyCount int `json:"reply_count"`
	ShareCount int `json:"share_count"`
	Upvotes    int `json:"upvotes"`
	Downvotes  int `json:"downvotes"`
	Score      int `json:"score"`

	Hashtags      []string `json:"hashtags,omitempty"`
	MediaCount    int      `json:"media_count"`
	HasLink       bool     `json:"has_link"`
	LinkPreviewImage bool  `json:"link_preview_image"`
	ContentLength int      `json:"content_length"`

	// Domain of the originating instance, set for federated posts only.
	Domain string `json:"domain,omitempty"`

	// Optional containers.
	CommunityID    *string `json:"community_id,omitempty"`
	ConversationID *string `json:"conversation_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CreatorKey returns a key identifying the post's creator that cannot collide
// across the local and remote identity namespaces.
func (p *Post) CreatorKey() string {
	if p.RemoteActorID != nil {
		return "remote:" + *p.RemoteActorID
	}
	if p.AuthorUserID != nil {
		return "local:" + *p.AuthorUserID
	}
	return ""
}

// HasMedia reports whether the post carries at least one media attachment.
func (p *Post) HasMedia() bool {
	return p.MediaCount > 0
}

// EngagementTotal returns the sum of like, reply, and share counters.
func (p *Post) EngagementTotal() int {
	return p.LikeCount + p.ReplyCount + p.ShareCount
}

// AuthoredBy reports whether the post was authored by the given local user.
func (p *Post) AuthoredBy(userID string) bool {
	return p.AuthorUserID != nil && *p.AuthorUserID == userID
}

// Eligible reports whether the post passes the moderation and deletion gates
// for candidate retrieval.
func (p *Post) Eligible() bool {
	if p.DeletedAt != nil {
		return false
	}
	return p.ModerationState == ModerationApproved || p.ModerationState == ModerationUnmoderated
}

// HasHashtag reports whether the post carries the given hashtag.
func (p *Post) HasHashtag(tag string) bool {
	for _, t := range p.Hashtags {
		if t == tag {
			return true
		}
	}
	return false
}

// CounterField names a post counter that can be atomically adjusted.
type CounterField string

// Counter fields maintained by engagement mutations.
const (
	FieldLikeCount  CounterField = "like_count"
	FieldReplyCount CounterField = "reply_count"
	FieldShareCount CounterField = "share_count"
	FieldUpvotes    CounterField = "upvotes"
	FieldDownvotes  CounterField = "downvotes"
)

// CandidateQuery describes an index-friendly retrieval of recent eligible
// posts from one origin. All filters are cheap predicates; no per-post scoring
// happens at this stage.
type CandidateQuery struct {
	// Origin selects the candidate source (local or federated).
	Origin Origin

	// Limit caps the number of returned posts.
	Limit int

	// CreatedAfter excludes posts older than this instant.
	CreatedAfter time.Time

	// ExcludeAuthorID drops posts authored by the requesting user.
	ExcludeAuthorID string

	// FollowedUserIDs and FollowedActorIDs widen visibility: followers-only
	// content from these creators is eligible. When both are empty, only
	// fully public content qualifies.
	FollowedUserIDs  map[string]bool
	FollowedActorIDs map[string]bool

	// BlockedCreatorKeys removes posts from creators on the bidirectional
	// block list, keyed by Post.CreatorKey.
	BlockedCreatorKeys map[string]bool
}

// visibleTo reports whether a post passes the query's visibility filter.
func (q *CandidateQuery) visibleTo(p *Post) bool {
	switch p.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityFollowers:
		if p.AuthorUserID != nil {
			return q.FollowedUserIDs[*p.AuthorUserID]
		}
		if p.RemoteActorID != nil {
			return q.FollowedActorIDs[*p.RemoteActorID]
		}
		return false
	default:
		// friends, private, and unlisted content never enters discovery.
		return false
	}
}

// matches reports whether a post satisfies every filter in the query.
func (q *CandidateQuery) matches(p *Post) bool {
	if p.Origin != q.Origin {
		return false
	}
	if !p.Eligible() {
		return false
	}
	if p.CreatedAt.Before(q.CreatedAfter) {
		return false
	}
	if q.ExcludeAuthorID != "" && p.AuthoredBy(q.ExcludeAuthorID) {
		return false
	}
	if q.BlockedCreatorKeys[p.CreatorKey()] {
		return false
	}
	return q.visibleTo(p)
}
