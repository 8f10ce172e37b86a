package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/middleware"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
	"github.com/atomine-elektrine/elektrine-feed/internal/ranking"
)

// VoteRequest represents the request body for casting a vote.
type VoteRequest struct {
	UserID   string `json:"user_id"`
	VoteType string `json:"vote_type"`
}

// VoteResponse represents the vote result.
type VoteResponse struct {
	PostID    string `json:"post_id"`
	VoteState string `json:"vote_state"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	Score     int    `json:"score"`
}

// LikeRequest represents the request body for liking or unliking a post.
type LikeRequest struct {
	UserID string `json:"user_id"`
}

// ScoreResponse represents the current engagement score of a post.
type ScoreResponse struct {
	PostID    string `json:"post_id"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	Score     int    `json:"score"`
}

// VoteHandlers holds dependencies for vote and like HTTP handlers.
type VoteHandlers struct {
	engine *ranking.Engine
	posts  post.Repository
}

// NewVoteHandlers creates a new VoteHandlers instance.
func NewVoteHandlers(engine *ranking.Engine, posts post.Repository) *VoteHandlers {
	return &VoteHandlers{
		engine: engine,
		posts:  posts,
	}
}

// extractPostID extracts the post ID from paths like /posts/{id}/vote.
func extractPostID(r *http.Request) (string, error) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/posts/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return "", fmt.Errorf("post ID is required")
	}
	return pathParts[0], nil
}

// CastVote handles POST /posts/{id}/vote - applies one vote transition.
func (h *VoteHandlers) CastVote(w http.ResponseWriter, r *http.Request) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Post ID is required")
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.UserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	state, err := h.engine.CastVote(ctx, req.UserID, postID, engagement.VoteType(req.VoteType))
	if err != nil {
		h.writeVoteError(w, r, postID, err)
		return
	}

	target, err := h.posts.GetByID(ctx, postID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to reload post after vote", "post_id", postID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load updated post")
		return
	}

	resp := VoteResponse{
		PostID:    postID,
		VoteState: string(state),
		Upvotes:   target.Upvotes,
		Downvotes: target.Downvotes,
		Score:     target.Score,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode vote response", "error", err)
	}
}

// Like handles POST /posts/{id}/like - records a like.
func (h *VoteHandlers) Like(w http.ResponseWriter, r *http.Request) {
	h.likeOrUnlike(w, r, true)
}

// Unlike handles DELETE /posts/{id}/like - removes a like.
func (h *VoteHandlers) Unlike(w http.ResponseWriter, r *http.Request) {
	h.likeOrUnlike(w, r, false)
}

func (h *VoteHandlers) likeOrUnlike(w http.ResponseWriter, r *http.Request, like bool) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Post ID is required")
		return
	}

	var req LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.UserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	if like {
		err = h.engine.Like(ctx, req.UserID, postID)
	} else {
		err = h.engine.Unlike(ctx, req.UserID, postID)
	}
	if err != nil {
		h.writeVoteError(w, r, postID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetScore handles GET /posts/{id}/score - returns the cached tallies and score.
func (h *VoteHandlers) GetScore(w http.ResponseWriter, r *http.Request) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Post ID is required")
		return
	}

	target, err := h.posts.GetByID(r.Context(), postID)
	if err != nil {
		h.writeVoteError(w, r, postID, err)
		return
	}

	resp := ScoreResponse{
		PostID:    postID,
		Upvotes:   target.Upvotes,
		Downvotes: target.Downvotes,
		Score:     target.Score,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode score response", "error", err)
	}
}

// writeVoteError maps engine and repository errors to API responses.
func (h *VoteHandlers) writeVoteError(w http.ResponseWriter, r *http.Request, postID string, err error) {
	switch {
	case errors.Is(err, engagement.ErrInvalidVoteType):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidVoteType)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidVoteType, "vote_type must be up or down")
	case errors.Is(err, post.ErrPostNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePostNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodePostNotFound, "Post not found")
	case errors.Is(err, post.ErrPostDeleted):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePostDeleted)
		WriteError(w, ctx, http.StatusGone, ErrCodePostDeleted, "Post has been deleted")
	default:
		slog.ErrorContext(r.Context(), "vote operation failed", "post_id", postID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Vote operation failed")
	}
}
