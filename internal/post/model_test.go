package post

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestCreatorKey(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want string
	}{
		{"local author", Post{AuthorUserID: strPtr("u1")}, "local:u1"},
		{"remote actor", Post{RemoteActorID: strPtr("https://ex.social/users/bob")}, "remote:https://ex.social/users/bob"},
		{"remote wins when both set", Post{AuthorUserID: strPtr("u1"), RemoteActorID: strPtr("a1")}, "remote:a1"},
		{"neither set", Post{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.CreatorKey(); got != tt.want {
				t.Errorf("CreatorKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEligible(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		post Post
		want bool
	}{
		{"approved", Post{ModerationState: ModerationApproved}, true},
		{"unmoderated", Post{ModerationState: ModerationUnmoderated}, true},
		{"rejected", Post{ModerationState: "rejected"}, false},
		{"deleted approved", Post{ModerationState: ModerationApproved, DeletedAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngagementTotal(t *testing.T) {
	p := Post{LikeCount: 3, ReplyCount: 2, ShareCount: 1}
	if got := p.EngagementTotal(); got != 6 {
		t.Errorf("EngagementTotal() = %d, want 6", got)
	}
}

func TestHasHashtag(t *testing.T) {
	p := Post{Hashtags: []string{"golang", "music"}}
	if !p.HasHashtag("music") {
		t.Error("expected HasHashtag(music) = true")
	}
	if p.HasHashtag("art") {
		t.Error("expected HasHashtag(art) = false")
	}
}

func TestCandidateQueryVisibility(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	query := CandidateQuery{
		Origin:           OriginLocal,
		CreatedAfter:     base.Add(-24 * time.Hour),
		FollowedUserIDs:  map[string]bool{"followed-user": true},
		FollowedActorIDs: map[string]bool{"followed-actor": true},
	}

	tests := []struct {
		name string
		post Post
		want bool
	}{
		{
			"public visible to anyone",
			Post{Origin: OriginLocal, Visibility: VisibilityPublic, ModerationState: ModerationApproved, AuthorUserID: strPtr("stranger"), CreatedAt: base},
			true,
		},
		{
			"followers-only from followed user",
			Post{Origin: OriginLocal, Visibility: VisibilityFollowers, ModerationState: ModerationApproved, AuthorUserID: strPtr("followed-user"), CreatedAt: base},
			true,
		},
		{
			"followers-only from stranger",
			Post{Origin: OriginLocal, Visibility: VisibilityFollowers, ModerationState: ModerationApproved, AuthorUserID: strPtr("stranger"), CreatedAt: base},
			false,
		},
		{
			"private never discoverable",
			Post{Origin: OriginLocal, Visibility: VisibilityPrivate, ModerationState: ModerationApproved, AuthorUserID: strPtr("followed-user"), CreatedAt: base},
			false,
		},
		{
			"unlisted never discoverable",
			Post{Origin: OriginLocal, Visibility: VisibilityUnlisted, ModerationState: ModerationApproved, AuthorUserID: strPtr("followed-user"), CreatedAt: base},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := query.matches(&tt.post); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidateQueryFilters(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	query := CandidateQuery{
		Origin:             OriginLocal,
		CreatedAfter:       base.Add(-24 * time.Hour),
		ExcludeAuthorID:    "viewer",
		BlockedCreatorKeys: map[string]bool{"local:blocked": true},
	}

	ok := Post{Origin: OriginLocal, Visibility: VisibilityPublic, ModerationState: ModerationApproved, AuthorUserID: strPtr("other"), CreatedAt: base}
	if !query.matches(&ok) {
		t.Fatal("expected baseline post to match")
	}

	wrongOrigin := ok
	wrongOrigin.Origin = OriginFederated
	if query.matches(&wrongOrigin) {
		t.Error("expected origin mismatch to be filtered")
	}

	tooOld := ok
	tooOld.CreatedAt = base.Add(-48 * time.Hour)
	if query.matches(&tooOld) {
		t.Error("expected stale post to be filtered")
	}

	own := ok
	own.AuthorUserID = strPtr("viewer")
	if query.matches(&own) {
		t.Error("expected viewer's own post to be filtered")
	}

	blocked := ok
	blocked.AuthorUserID = strPtr("blocked")
	if query.matches(&blocked) {
		t.Error("expected blocked creator to be filtered")
	}
}
