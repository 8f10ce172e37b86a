package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/atomine-elektrine/elektrine-feed/internal/middleware"
	"github.com/atomine-elektrine/elektrine-feed/internal/ranking"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the frontend domains are settled
		return true
	},
}

// ScoreWebSocketHandlers holds dependencies for score subscription handlers.
type ScoreWebSocketHandlers struct {
	broadcaster *ranking.ScoreBroadcaster
}

// NewScoreWebSocketHandlers creates a new ScoreWebSocketHandlers instance.
func NewScoreWebSocketHandlers(broadcaster *ranking.ScoreBroadcaster) *ScoreWebSocketHandlers {
	return &ScoreWebSocketHandlers{
		broadcaster: broadcaster,
	}
}

// SubscribeToScores handles WebSocket connections for live score updates.
// GET /communities/{id}/scores
func (h *ScoreWebSocketHandlers) SubscribeToScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Expected: /communities/{id}/scores
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/communities/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != "scores" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid URL path")
		return
	}
	communityID := pathParts[0]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"community_id", communityID,
		)
		return
	}

	h.broadcaster.Subscribe(communityID, conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to score updates",
		"community_id", communityID,
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"community_id", communityID,
			"request_id", requestID,
		)
	}()

	// Clients don't send messages; reading is only how we detect disconnects.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly",
					"error", err,
					"community_id", communityID,
				)
			}
			break
		}
	}
}
