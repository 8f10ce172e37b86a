// Package profile builds the request-scoped user affinity profile consumed by
// the feed scoring stages. A profile is assembled once per feed request from
// the signal store, passed by reference through the pipeline, and discarded
// when the request completes; it is never persisted or mutated after build.
package profile

// SessionContext carries session-scoped hints supplied by the caller. Values
// are passed through verbatim; the builder performs no validation beyond
// treating absent fields as empty.
type SessionContext struct {
	LikedHashtags       []string `json:"liked_hashtags,omitempty"`
	LikedCreators       []string `json:"liked_creators,omitempty"`
	LikedRemoteCreators []string `json:"liked_remote_creators,omitempty"`
	EngagementRate      float64  `json:"engagement_rate,omitempty"`
	ViewedPosts         []string `json:"viewed_posts,omitempty"`
}

// Profile is the immutable per-request snapshot of a user's engagement
// signals. Every aggregate is independently missing-safe: a user with no
// history yields empty maps and zero values, and scoring treats absence as
// neutral rather than negative.
type Profile struct {
	UserID string

	// Follow graph, pending requests excluded.
	FollowedUsers  map[string]bool // local user IDs
	FollowedActors map[string]bool // remote actor IDs

	// HashtagWeights maps hashtags the user engaged with to a 0..1
	// recency-biased interest strength (exponential decay, max-normalized).
	HashtagWeights map[string]float64

	// HighDwellHashtags are hashtags from posts the user viewed with dwell
	// above the high-dwell threshold.
	HighDwellHashtags map[string]bool

	// AvgDwellMsByCreator holds average dwell time per creator key, computed
	// only for creators with at least two recorded views.
	AvgDwellMsByCreator map[string]float64

	// ViewCountByCreator counts recorded views per creator key.
	ViewCountByCreator map[string]int

	// IgnoreRateByCreator is dismissals / (views + dismissals) per creator
	// key; creators with no data are simply absent (treated as 0.0).
	IgnoreRateByCreator map[string]float64

	// DismissedHashtags are hashtags appearing in three or more dismissed posts.
	DismissedHashtags map[string]bool

	// SatisfactionByCreator is the 0..1 creator satisfaction score per
	// creator key.
	SatisfactionByCreator map[string]float64

	// LikedPosts and ViewedPosts index the user's direct post interactions;
	// LikedCreators holds the creator keys of liked posts.
	LikedPosts     map[string]bool
	LikedCreators  map[string]bool
	ViewedPosts    map[string]bool
	DismissedPosts map[string]bool

	// FavoriteDomains are federated domains the user liked at least twice.
	FavoriteDomains map[string]bool

	// LikedContentTypes and EngagedCommunities back the category and
	// community matches of the content similarity factor.
	LikedContentTypes  map[string]bool
	EngagedCommunities map[string]bool

	// Session hints, passed through verbatim. SessionViewed and
	// SessionLikedHashtags are indexed forms of the same data.
	Session              SessionContext
	SessionViewed        map[string]bool
	SessionLikedHashtags map[string]bool
	SessionLikedCreators map[string]bool // creator keys, both namespaces
}

// Empty returns a profile with every aggregate initialized and empty, used
// for anonymous requests and users with no history.
func Empty() *Profile {
	return &Profile{
		FollowedUsers:         map[string]bool{},
		FollowedActors:        map[string]bool{},
		HashtagWeights:        map[string]float64{},
		HighDwellHashtags:     map[string]bool{},
		AvgDwellMsByCreator:   map[string]float64{},
		ViewCountByCreator:    map[string]int{},
		IgnoreRateByCreator:   map[string]float64{},
		DismissedHashtags:     map[string]bool{},
		SatisfactionByCreator: map[string]float64{},
		LikedPosts:            map[string]bool{},
		LikedCreators:         map[string]bool{},
		ViewedPosts:           map[string]bool{},
		DismissedPosts:        map[string]bool{},
		FavoriteDomains:       map[string]bool{},
		LikedContentTypes:     map[string]bool{},
		EngagedCommunities:    map[string]bool{},
		SessionViewed:         map[string]bool{},
		SessionLikedHashtags:  map[string]bool{},
		SessionLikedCreators:  map[string]bool{},
	}
}

// Follows reports whether the profile's user follows the given creator key.
func (p *Profile) Follows(creatorKey string) bool {
	if len(creatorKey) > 6 && creatorKey[:6] == "local:" {
		return p.FollowedUsers[creatorKey[6:]]
	}
	if len(creatorKey) > 7 && creatorKey[:7] == "remote:" {
		return p.FollowedActors[creatorKey[7:]]
	}
	return false
}

// FollowsAnyone reports whether the user follows at least one creator.
func (p *Profile) FollowsAnyone() bool {
	return len(p.FollowedUsers) > 0 || len(p.FollowedActors) > 0
}
