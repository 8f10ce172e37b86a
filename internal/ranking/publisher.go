package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoreUpdateChannel is the Redis pub/sub channel for score updates.
const ScoreUpdateChannel = "score_updates"

// ScoreUpdate is the payload fanned out after a post's engagement score
// changes.
type ScoreUpdate struct {
	PostID      string    `json:"post_id"`
	CommunityID string    `json:"community_id"`
	Score       int       `json:"score"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Publisher fans out score updates to downstream consumers.
type Publisher interface {
	// PublishScoreUpdated delivers one score update. Implementations must be
	// safe for concurrent use.
	PublishScoreUpdated(ctx context.Context, update ScoreUpdate) error
}

// RedisPublisher publishes score updates on a Redis pub/sub channel so other
// service instances can relay them to their own WebSocket subscribers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on the default score update channel.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: ScoreUpdateChannel,
	}
}

// PublishScoreUpdated serializes the update to JSON and publishes it.
func (p *RedisPublisher) PublishScoreUpdated(ctx context.Context, update ScoreUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal score update: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish score update: %w", err)
	}
	return nil
}

// MemoryPublisher records published updates in memory. Used in tests and as
// the fan-out sink when Redis is not configured.
type MemoryPublisher struct {
	mu      sync.Mutex
	updates []ScoreUpdate
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishScoreUpdated appends the update to the in-memory log.
func (p *MemoryPublisher) PublishScoreUpdated(_ context.Context, update ScoreUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
	return nil
}

// Updates returns a copy of all published updates.
func (p *MemoryPublisher) Updates() []ScoreUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScoreUpdate, len(p.updates))
	copy(out, p.updates)
	return out
}
