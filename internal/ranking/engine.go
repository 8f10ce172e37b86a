package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atomine-elektrine/elektrine-feed/internal/engagement"
	"github.com/atomine-elektrine/elektrine-feed/internal/post"
)

// VoteState is the state of a (user, post) vote.
type VoteState string

// Vote states.
const (
	VoteStateNone VoteState = "none"
	VoteStateUp   VoteState = "up"
	VoteStateDown VoteState = "down"
)

// Engine applies vote transitions and keeps the cached vote tallies and
// engagement score on the post in sync. Atomicity of concurrent votes on the
// same post is the storage layer's responsibility; the engine assumes
// retry-on-conflict below it and holds no locks of its own.
type Engine struct {
	posts      post.Repository
	signals    engagement.SignalStore
	publishers []Publisher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a ranking engine. Publishers receive fire-and-forget
// score updates; a nil metrics disables instrumentation.
func NewEngine(posts post.Repository, signals engagement.SignalStore, metrics *Metrics, logger *slog.Logger, publishers ...Publisher) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		posts:      posts,
		signals:    signals,
		publishers: publishers,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the engine's time source (used by tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CastVote applies one vote action through the three-state machine:
//
//	none --up--> up     none --down--> down
//	up   --up--> none   down --down--> none   (toggle off, vote row deleted)
//	up --down--> down   down --up-->   up     (direct switch, single upsert)
//
// Every transition recomputes the post's tallies from the vote rows,
// recomputes the engagement score, persists both, and publishes a score
// update when the post belongs to a community. An invalid vote type is
// rejected before any state changes.
func (e *Engine) CastVote(ctx context.Context, userID, postID string, voteType engagement.VoteType) (VoteState, error) {
	if !engagement.ValidVoteType(voteType) {
		return VoteStateNone, engagement.ErrInvalidVoteType
	}

	target, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return VoteStateNone, fmt.Errorf("failed to load post for vote: %w", err)
	}

	current, err := e.signals.GetVote(ctx, userID, postID)
	if err != nil {
		return VoteStateNone, fmt.Errorf("failed to load current vote: %w", err)
	}

	var next VoteState
	var transition string
	switch {
	case current == nil:
		// none -> up/down
		if err := e.signals.UpsertVote(ctx, engagement.Vote{UserID: userID, PostID: postID, Type: voteType}); err != nil {
			return VoteStateNone, fmt.Errorf("failed to cast vote: %w", err)
		}
		next = VoteState(voteType)
		transition = "cast"
	case current.Type == voteType:
		// up -> none, down -> none
		if err := e.signals.DeleteVote(ctx, userID, postID); err != nil {
			return VoteStateNone, fmt.Errorf("failed to remove vote: %w", err)
		}
		next = VoteStateNone
		transition = "toggle_off"
	default:
		// up -> down, down -> up in a single upsert
		if err := e.signals.UpsertVote(ctx, engagement.Vote{UserID: userID, PostID: postID, Type: voteType}); err != nil {
			return VoteStateNone, fmt.Errorf("failed to switch vote: %w", err)
		}
		next = VoteState(voteType)
		transition = "switch"
	}

	score, err := e.refreshScore(ctx, target)
	if err != nil {
		return next, err
	}

	if e.metrics != nil {
		e.metrics.IncVoteTransition(transition)
	}
	e.logger.Debug("vote applied",
		"user_id", userID,
		"post_id", postID,
		"transition", transition,
		"state", string(next),
		"score", score)

	return next, nil
}

// Like records a like for (user, post) and bumps the like counter when a new
// row was inserted.
func (e *Engine) Like(ctx context.Context, userID, postID string) error {
	if _, err := e.posts.GetByID(ctx, postID); err != nil {
		return fmt.Errorf("failed to load post for like: %w", err)
	}
	inserted, err := e.signals.UpsertLike(ctx, engagement.Like{UserID: userID, PostID: postID})
	if err != nil {
		return fmt.Errorf("failed to record like: %w", err)
	}
	if inserted {
		if err := e.posts.IncrementCounter(ctx, postID, post.FieldLikeCount, 1); err != nil {
			return fmt.Errorf("failed to bump like count: %w", err)
		}
	}
	return nil
}

// Unlike removes a like for (user, post) and decrements the like counter
// when a row existed. Unliking an absent like is a no-op.
func (e *Engine) Unlike(ctx context.Context, userID, postID string) error {
	removed, err := e.signals.DeleteLike(ctx, userID, postID)
	if err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	if removed {
		if err := e.posts.IncrementCounter(ctx, postID, post.FieldLikeCount, -1); err != nil {
			return fmt.Errorf("failed to drop like count: %w", err)
		}
	}
	return nil
}

// RecomputePost recomputes tallies and score for one post from the full vote
// row set, overwriting the cached counters. This is the authoritative
// recovery path for counter drift.
func (e *Engine) RecomputePost(ctx context.Context, postID string) (int, error) {
	target, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to load post for recompute: %w", err)
	}
	return e.refreshScore(ctx, target)
}

// refreshScore recomputes tallies from vote rows, derives the engagement
// score, persists both, and fans out the update.
func (e *Engine) refreshScore(ctx context.Context, target *post.Post) (int, error) {
	up, down, err := e.signals.VoteTallies(ctx, target.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to tally votes: %w", err)
	}

	score := EngagementScore(ScoreInputs{
		Upvotes:       up,
		Downvotes:     down,
		AgeHours:      e.now().Sub(target.CreatedAt).Hours(),
		ReplyCount:    target.ReplyCount,
		ContentLength: target.ContentLength,
		HasLink:       target.HasLink,
	})

	if err := e.posts.SetVoteCounts(ctx, target.ID, up, down); err != nil {
		return 0, fmt.Errorf("failed to persist tallies: %w", err)
	}
	if err := e.posts.SetScore(ctx, target.ID, score); err != nil {
		return 0, fmt.Errorf("failed to persist score: %w", err)
	}

	// Downstream fan-out is fire-and-forget for community posts: publish
	// failures are logged and never roll back the mutation.
	if target.CommunityID != nil {
		update := ScoreUpdate{
			PostID:      target.ID,
			CommunityID: *target.CommunityID,
			Score:       score,
			UpdatedAt:   e.now(),
		}
		for _, pub := range e.publishers {
			go func(pub Publisher) {
				if err := pub.PublishScoreUpdated(context.WithoutCancel(ctx), update); err != nil {
					if e.metrics != nil {
						e.metrics.IncPublishErrors()
					}
					e.logger.Warn("failed to publish score update",
						"post_id", update.PostID,
						"error", err)
				}
			}(pub)
		}
	}

	return score, nil
}
