package api

import (
	"context"
	"errors"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/evgray/chatglass/internal/capture"
	"github.com/evgray/chatglass/internal/chats"
	"github.com/evgray/chatglass/internal/reconcile"
	"github.com/evgray/chatglass/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ChatHandler exposes the chat collection and the cycle trigger over
// HTTP.
type ChatHandler struct {
	list       *chats.List
	reconciler *reconcile.Reconciler
	repo       store.Repository
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(list *chats.List, reconciler *reconcile.Reconciler, repo store.Repository) *ChatHandler {
	return &ChatHandler{list: list, reconciler: reconciler, repo: repo}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/cycle", h.TriggerCycle)
		r.Get("/chats", h.ListChats)
		r.Post("/chats/{id}/select", h.SelectChat)
		r.Post("/chats/{id}/read", h.MarkRead)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Get("/chats/{id}/preview", h.Preview)
	})
}

// TriggerCycle is the external stimulus that starts one reconciliation
// cycle. Re-triggering while a cycle is in flight is a no-op.
func (h *ChatHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, capture.ErrUnavailable) {
			Error(w, http.StatusServiceUnavailable, "screen capture unavailable")
			return
		}
		slog.Error("cycle failed", "error", err)
		Error(w, http.StatusInternalServerError, "cycle failed")
		return
	}
	if report == nil {
		JSON(w, http.StatusOK, map[string]string{"status": "already_running"})
		return
	}

	windowErrors := make([]map[string]string, 0, len(report.WindowErrors))
	for _, werr := range report.WindowErrors {
		windowErrors = append(windowErrors, map[string]string{
			"window": werr.Window,
			"error":  werr.Err.Error(),
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":        "completed",
		"windows":       report.Windows,
		"updated_chats": report.Updated,
		"new_messages":  report.NewMessages,
		"selected_id":   report.SelectedID,
		"window_errors": windowErrors,
	})
}

// ListChats returns the current versioned snapshot of the collection.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.list.Snapshot())
}

// SelectChat marks a chat as the consumer's current chat and clears its
// unread count.
func (h *ChatHandler) SelectChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if !h.list.Select(id) {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}
	h.persist(r.Context())
	JSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// MarkRead clears a chat's unread count without changing selection.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if !h.list.MarkRead(id) {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}
	h.persist(r.Context())
	JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// DeleteChat removes a chat permanently. Chats are never evicted
// automatically; this is the only removal path.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if !h.list.Remove(id) {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}
	h.persist(r.Context())
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Preview serves the chat's most recent window crop as PNG. 404 until
// the first successful capture after startup: previews are never
// persisted.
func (h *ChatHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	img := h.list.Preview(id)
	if img == nil {
		Error(w, http.StatusNotFound, "no preview available")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		slog.Debug("failed to encode preview", "chat_id", id, "error", err)
	}
}

// persist writes the collection after a consumer action. Same contract
// as cycle-time persistence: failures are logged, state stays in memory.
func (h *ChatHandler) persist(ctx context.Context) {
	if err := h.repo.SaveChats(ctx, h.list.Records()); err != nil {
		slog.Warn("failed to persist chats after consumer action", "error", err)
	}
}

func chatID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return uuid.UUID{}, false
	}
	return id, true
}
