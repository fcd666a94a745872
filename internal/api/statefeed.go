package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/evgray/chatglass/internal/chats"
)

// StateFeedHandler streams versioned collection snapshots to UI
// consumers over WebSocket. Consumers react to version bumps; there is
// no clear-then-repopulate dance, each frame is a complete state.
type StateFeedHandler struct {
	list  *chats.List
	isDev bool
}

// NewStateFeedHandler creates a new state feed handler.
func NewStateFeedHandler(list *chats.List, isDev bool) *StateFeedHandler {
	return &StateFeedHandler{list: list, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *StateFeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if h.isDev {
		opts.OriginPatterns = []string{"*"}
	}

	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("failed to accept state feed WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("failed to close state feed websocket", "error", closeErr)
		}
	}()

	slog.Info("state feed consumer connected", "ip", r.RemoteAddr)

	updates, cancel := h.list.Subscribe()
	defer cancel()

	ctx := r.Context()

	// Discard inbound frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if err := h.writeSnapshot(ctx, ws, snap); err != nil {
				slog.Debug("state feed write failed, dropping consumer", "error", err)
				return
			}
		}
	}
}

func (h *StateFeedHandler) writeSnapshot(ctx context.Context, ws *websocket.Conn, snap chats.Snapshot) error {
	return wsjson.Write(ctx, ws, snap)
}
