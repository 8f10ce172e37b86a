package post

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL. Counter updates
// are single UPDATE statements, so they are atomic relative to concurrent
// mutations on the same row without explicit locking.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const postColumns = `
	id, origin, author_user_id, remote_actor_id, visibility, content_type,
	moderation_state, like_count, reply_count, share_count, upvotes, downvotes,
	score, hashtags, media_count, has_link, link_preview_image, content_length,
	domain, community_id, conversation_id, created_at, deleted_at`

// scanPost scans one row into a Post.
func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	var hashtags pq.StringArray
	var domain sql.NullString
	err := row.Scan(
		&p.ID, &p.Origin, &p.AuthorUserID, &p.RemoteActorID, &p.Visibility,
		&p.ContentType, &p.ModerationState, &p.LikeCount, &p.ReplyCount,
		&p.ShareCount, &p.Upvotes, &p.Downvotes, &p.Score, &hashtags,
		&p.MediaCount, &p.HasLink, &p.LinkPreviewImage, &p.ContentLength,
		&domain, &p.CommunityID, &p.ConversationID, &p.CreatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Hashtags = []string(hashtags)
	p.Domain = domain.String
	return &p, nil
}

// GetByID retrieves a post by ID, excluding soft-deleted posts.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if p.DeletedAt != nil {
		return nil, ErrPostDeleted
	}
	return p, nil
}

// Create inserts a new post.
func (r *PostgresRepository) Create(ctx context.Context, p *Post) error {
	if p.ModerationState == "" {
		p.ModerationState = ModerationUnmoderated
	}
	query := `
		INSERT INTO posts (
			id, origin, author_user_id, remote_actor_id, visibility, content_type,
			moderation_state, hashtags, media_count, has_link, link_preview_image,
			content_length, domain, community_id, conversation_id, created_at
		) VALUES (
			COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15,
			COALESCE($16, NOW())
		)
		RETURNING id, created_at`
	var createdAt sql.NullTime
	if !p.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: p.CreatedAt, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Origin, p.AuthorUserID, p.RemoteActorID, p.Visibility,
		p.ContentType, p.ModerationState, pq.StringArray(p.Hashtags),
		p.MediaCount, p.HasLink, p.LinkPreviewImage, p.ContentLength,
		p.Domain, p.CommunityID, p.ConversationID, createdAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// ListCandidates retrieves recent eligible posts for one origin. The query is
// a single index scan over (origin, created_at DESC); all filters are cheap
// predicates the planner can push down.
func (r *PostgresRepository) ListCandidates(ctx context.Context, q CandidateQuery) ([]*Post, error) {
	followedUsers := keys(q.FollowedUserIDs)
	followedActors := keys(q.FollowedActorIDs)
	blocked := keys(q.BlockedCreatorKeys)

	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE origin = $1
		  AND deleted_at IS NULL
		  AND moderation_state IN ('approved', 'unmoderated')
		  AND created_at >= $2
		  AND (author_user_id IS NULL OR author_user_id <> $3)
		  AND (
		        visibility = 'public'
		     OR (visibility = 'followers' AND author_user_id = ANY($4))
		     OR (visibility = 'followers' AND remote_actor_id = ANY($5))
		  )
		  AND ('local:' || COALESCE(author_user_id, '') <> ALL($6))
		  AND ('remote:' || COALESCE(remote_actor_id, '') <> ALL($6))
		ORDER BY created_at DESC, id ASC
		LIMIT $7`

	rows, err := r.db.QueryContext(ctx, query,
		q.Origin, q.CreatedAfter, q.ExcludeAuthorID,
		pq.StringArray(followedUsers), pq.StringArray(followedActors),
		pq.StringArray(blocked), q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// IncrementCounter atomically adjusts a counter field by delta, flooring at zero.
func (r *PostgresRepository) IncrementCounter(ctx context.Context, id string, field CounterField, delta int) error {
	switch field {
	case FieldLikeCount, FieldReplyCount, FieldShareCount, FieldUpvotes, FieldDownvotes:
	default:
		return fmt.Errorf("unknown counter field %q", field)
	}

	// field is validated against the CounterField constants above, so string
	// interpolation of the column name is safe here.
	query := fmt.Sprintf(
		`UPDATE posts SET %s = GREATEST(%s + $1, 0), last_activity_at = NOW() WHERE id = $2`,
		field, field,
	)
	res, err := r.db.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetVoteCounts overwrites the cached vote tallies for a post.
func (r *PostgresRepository) SetVoteCounts(ctx context.Context, id string, upvotes, downvotes int) error {
	query := `UPDATE posts SET upvotes = $1, downvotes = $2, last_activity_at = NOW() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, upvotes, downvotes, id)
	if err != nil {
		return fmt.Errorf("failed to set vote counts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetScore overwrites the cached engagement score for a post.
func (r *PostgresRepository) SetScore(ctx context.Context, id string, score int) error {
	query := `UPDATE posts SET score = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, score, id)
	if err != nil {
		return fmt.Errorf("failed to set score: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ListActiveSince returns IDs of posts with vote activity at or after since.
func (r *PostgresRepository) ListActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT id FROM posts WHERE last_activity_at >= $1 AND deleted_at IS NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active posts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// keys returns the map keys as a slice; empty maps yield an empty slice so
// pq.StringArray never marshals NULL.
func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
