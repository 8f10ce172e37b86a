package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/atomine-elektrine/elektrine-feed/internal/feed"
	"github.com/atomine-elektrine/elektrine-feed/internal/middleware"
	"github.com/atomine-elektrine/elektrine-feed/internal/profile"
)

// MaxFeedLimit caps how many posts a single feed request may ask for.
const MaxFeedLimit = 200

// SessionRequest carries the caller's current session signals. All fields are
// optional; an absent session means no session-level personalization.
type SessionRequest struct {
	LikedHashtags  []string `json:"liked_hashtags,omitempty"`
	LikedCreators  []string `json:"liked_creators,omitempty"`
	LikedRemote    []string `json:"liked_remote_creators,omitempty"`
	ViewedPosts    []string `json:"viewed_posts,omitempty"`
	EngagementRate float64  `json:"engagement_rate,omitempty"`
}

// FeedRequest represents the request body for building a feed.
type FeedRequest struct {
	UserID  string          `json:"user_id,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Seed    int64           `json:"seed,omitempty"`
	Session *SessionRequest `json:"session,omitempty"`
}

// FeedItem is one entry in the feed response.
type FeedItem struct {
	PostID string `json:"post_id"`
	Score  int    `json:"score"`
}

// FeedResponse represents the feed build result.
type FeedResponse struct {
	PostIDs []string   `json:"post_ids"`
	Items   []FeedItem `json:"items"`
}

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	service      *feed.Service
	defaultLimit int
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(service *feed.Service, defaultLimit int) *FeedHandlers {
	if defaultLimit <= 0 {
		defaultLimit = feed.DefaultLimit
	}
	return &FeedHandlers{
		service:      service,
		defaultLimit: defaultLimit,
	}
}

// BuildFeed handles POST /feed - builds a personalized feed.
// An empty user_id builds the anonymous discovery feed.
func (h *FeedHandlers) BuildFeed(w http.ResponseWriter, r *http.Request) {
	var req FeedRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return
		}
	}

	h.build(w, r, req)
}

// GetFeed handles GET /feed?user_id=&limit=&seed= - builds a feed without
// session context, for clients that cannot send a body.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	req := FeedRequest{
		UserID: r.URL.Query().Get("user_id"),
	}

	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	if rawSeed := r.URL.Query().Get("seed"); rawSeed != "" {
		seed, err := strconv.ParseInt(rawSeed, 10, 64)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "seed must be an integer")
			return
		}
		req.Seed = seed
	}

	h.build(w, r, req)
}

func (h *FeedHandlers) build(w http.ResponseWriter, r *http.Request, req FeedRequest) {
	if req.Limit < 0 || req.Limit > MaxFeedLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be between 0 and 200")
		return
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}

	ctx := r.Context()
	if req.UserID != "" {
		ctx = middleware.SetUserID(ctx, req.UserID)
		middleware.UpdateResponseContext(w, ctx)
	}

	result, err := h.service.BuildFeed(ctx, feed.Request{
		UserID:  req.UserID,
		Limit:   req.Limit,
		Session: sessionContext(req.Session),
		Seed:    req.Seed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "feed build failed", "user_id", req.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build feed")
		return
	}

	resp := FeedResponse{
		PostIDs: result.PostIDs,
		Items:   make([]FeedItem, len(result.Posts)),
	}
	for i, sp := range result.Posts {
		resp.Items[i] = FeedItem{PostID: sp.Post.ID, Score: int(sp.Score)}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode feed response", "error", err)
	}
}

// sessionContext converts the wire session into the profile builder's form.
func sessionContext(s *SessionRequest) *profile.SessionContext {
	if s == nil {
		return nil
	}
	return &profile.SessionContext{
		LikedHashtags:       s.LikedHashtags,
		LikedCreators:       s.LikedCreators,
		LikedRemoteCreators: s.LikedRemote,
		ViewedPosts:         s.ViewedPosts,
		EngagementRate:      s.EngagementRate,
	}
}
