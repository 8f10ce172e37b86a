package engagement

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresSignalStore implements SignalStore using PostgreSQL. Vote upserts
// rely on ON CONFLICT so concurrent votes on the same post resolve at the
// storage layer without application-side locking.
type PostgresSignalStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSignalStore creates a new PostgresSignalStore.
func NewPostgresSignalStore(db *sql.DB, logger *slog.Logger) *PostgresSignalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSignalStore{db: db, logger: logger}
}

// LikesByUser returns all likes recorded for a user.
func (s *PostgresSignalStore) LikesByUser(ctx context.Context, userID string) ([]Like, error) {
	query := `SELECT user_id, post_id, created_at FROM likes WHERE user_id = $1 ORDER BY post_id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}
	defer rows.Close()

	var out []Like
	for rows.Next() {
		var l Like
		if err := rows.Scan(&l.UserID, &l.PostID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ViewsByUser returns all views recorded for a user.
func (s *PostgresSignalStore) ViewsByUser(ctx context.Context, userID string) ([]View, error) {
	query := `
		SELECT user_id, post_id, dwell_time_ms, scroll_depth, completed, view_count, created_at
		FROM views WHERE user_id = $1 ORDER BY post_id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.UserID, &v.PostID, &v.DwellTimeMs, &v.ScrollDepth, &v.Completed, &v.ViewCount, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DismissalsByUser returns all dismissals recorded for a user.
func (s *PostgresSignalStore) DismissalsByUser(ctx context.Context, userID string) ([]Dismissal, error) {
	query := `SELECT user_id, post_id, dismissal_type, created_at FROM dismissals WHERE user_id = $1 ORDER BY post_id, dismissal_type`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dismissals: %w", err)
	}
	defer rows.Close()

	var out []Dismissal
	for rows.Next() {
		var d Dismissal
		if err := rows.Scan(&d.UserID, &d.PostID, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dismissal: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Follows returns the user's follow graph, excluding pending requests.
func (s *PostgresSignalStore) Follows(ctx context.Context, userID string) (FollowGraph, error) {
	graph := FollowGraph{UserIDs: make(map[string]bool), ActorIDs: make(map[string]bool)}

	query := `
		SELECT followed_user_id, followed_actor_id
		FROM follows
		WHERE follower_id = $1 AND pending = false`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return graph, fmt.Errorf("failed to query follows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var localID, actorID sql.NullString
		if err := rows.Scan(&localID, &actorID); err != nil {
			return graph, fmt.Errorf("failed to scan follow: %w", err)
		}
		if localID.Valid {
			graph.UserIDs[localID.String] = true
		}
		if actorID.Valid {
			graph.ActorIDs[actorID.String] = true
		}
	}
	return graph, rows.Err()
}

// BlockedCreatorKeys returns the bidirectional block list for a user.
func (s *PostgresSignalStore) BlockedCreatorKeys(ctx context.Context, userID string) (map[string]bool, error) {
	out := make(map[string]bool)

	// Union of both directions: creators the viewer blocked and creators
	// who blocked the viewer.
	query := `
		SELECT blocked_creator_key FROM blocks WHERE user_id = $1
		UNION
		SELECT 'local:' || user_id FROM blocks WHERE blocked_creator_key = 'local:' || $1`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return out, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return out, fmt.Errorf("failed to scan block: %w", err)
		}
		out[key] = true
	}
	return out, rows.Err()
}

// SatisfactionByViewer returns all creator satisfaction records for a viewer.
func (s *PostgresSignalStore) SatisfactionByViewer(ctx context.Context, viewerID string) ([]CreatorSatisfaction, error) {
	query := `
		SELECT viewer_id, creator_user_id, remote_actor_id,
		       followed_after_viewing, continued_engagement, immediate_leave,
		       posts_viewed, dwell_time_ms
		FROM creator_satisfaction WHERE viewer_id = $1`
	rows, err := s.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query satisfaction: %w", err)
	}
	defer rows.Close()

	var out []CreatorSatisfaction
	for rows.Next() {
		var r CreatorSatisfaction
		if err := rows.Scan(&r.ViewerID, &r.CreatorUserID, &r.RemoteActorID,
			&r.FollowedAfterViewing, &r.ContinuedEngagement, &r.ImmediateLeave,
			&r.PostsViewed, &r.DwellTimeMs); err != nil {
			return nil, fmt.Errorf("failed to scan satisfaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LikersOf returns the IDs of users who liked a post.
func (s *PostgresSignalStore) LikersOf(ctx context.Context, postID string) ([]string, error) {
	query := `SELECT user_id FROM likes WHERE post_id = $1 ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query likers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liker: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetVote returns the user's vote on a post, or nil when none exists.
func (s *PostgresSignalStore) GetVote(ctx context.Context, userID, postID string) (*Vote, error) {
	query := `SELECT user_id, post_id, vote_type, created_at FROM votes WHERE user_id = $1 AND post_id = $2`
	var v Vote
	err := s.db.QueryRowContext(ctx, query, userID, postID).Scan(&v.UserID, &v.PostID, &v.Type, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &v, nil
}

// UpsertVote inserts or replaces the user's vote on a post. The unique
// (user_id, post_id) constraint plus ON CONFLICT makes direction switches a
// single transition rather than delete-then-insert.
func (s *PostgresSignalStore) UpsertVote(ctx context.Context, vote Vote) error {
	if !ValidVoteType(vote.Type) {
		return ErrInvalidVoteType
	}
	query := `
		INSERT INTO votes (user_id, post_id, vote_type, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, post_id)
		DO UPDATE SET vote_type = EXCLUDED.vote_type`
	if _, err := s.db.ExecContext(ctx, query, vote.UserID, vote.PostID, vote.Type); err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

// DeleteVote removes the user's vote on a post.
func (s *PostgresSignalStore) DeleteVote(ctx context.Context, userID, postID string) error {
	query := `DELETE FROM votes WHERE user_id = $1 AND post_id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, postID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

// VoteTallies recomputes (upvotes, downvotes) for a post from its vote rows.
func (s *PostgresSignalStore) VoteTallies(ctx context.Context, postID string) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE vote_type = 'up'),
			COUNT(*) FILTER (WHERE vote_type = 'down')
		FROM votes WHERE post_id = $1`
	var up, down int
	if err := s.db.QueryRowContext(ctx, query, postID).Scan(&up, &down); err != nil {
		return 0, 0, fmt.Errorf("failed to tally votes: %w", err)
	}
	return up, down, nil
}

// UpsertLike records a like, returning true when a new row was inserted.
func (s *PostgresSignalStore) UpsertLike(ctx context.Context, like Like) (bool, error) {
	query := `
		INSERT INTO likes (user_id, post_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, post_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, like.UserID, like.PostID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read like result: %w", err)
	}
	return n > 0, nil
}

// DeleteLike removes a like, returning true when a row existed.
func (s *PostgresSignalStore) DeleteLike(ctx context.Context, userID, postID string) (bool, error) {
	query := `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`
	res, err := s.db.ExecContext(ctx, query, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}
