package ranking

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ScoreBroadcaster manages WebSocket connections and broadcasts score updates
// to clients watching a community. It implements Publisher, so the engine can
// fan out to local sockets the same way it fans out to Redis.
type ScoreBroadcaster struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]bool // communityID -> connections
}

// NewScoreBroadcaster creates a new score broadcaster.
func NewScoreBroadcaster() *ScoreBroadcaster {
	return &ScoreBroadcaster{
		connections: make(map[string]map[*websocket.Conn]bool),
	}
}

// Subscribe registers a WebSocket connection for a community.
func (b *ScoreBroadcaster) Subscribe(communityID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connections[communityID] == nil {
		b.connections[communityID] = make(map[*websocket.Conn]bool)
	}
	b.connections[communityID][conn] = true
}

// Unsubscribe removes a WebSocket connection from all communities.
func (b *ScoreBroadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for communityID, conns := range b.connections {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, communityID)
		}
	}
}

// PublishScoreUpdated sends the update to all subscribers of its community.
func (b *ScoreBroadcaster) PublishScoreUpdated(_ context.Context, update ScoreUpdate) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	conns, exists := b.connections[update.CommunityID]
	if !exists || len(conns) == 0 {
		return nil
	}

	// Serialize once
	data, err := json.Marshal(update)
	if err != nil {
		slog.Error("failed to marshal score update", "error", err)
		return err
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("failed to send score update to websocket client",
				"error", err,
				"community_id", update.CommunityID,
			)
			// Connection will be cleaned up when client disconnects
		}
	}
	return nil
}

// ConnectionCount returns the number of active connections for a community.
func (b *ScoreBroadcaster) ConnectionCount(communityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if conns, exists := b.connections[communityID]; exists {
		return len(conns)
	}
	return 0
}
