package domain

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Chat is a named conversation thread reconstructed from screen captures.
// Name is the detected window title and acts as the reconciliation key:
// at most one chat per distinct name is active at a time.
type Chat struct {
	ID          uuid.UUID
	Name        string
	Messages    []Message
	UnreadCount int
	// LastMessageAt tracks the newest message's timestamp, or the chat's
	// creation time while the message list is empty.
	LastMessageAt time.Time
	// Preview is the most recent crop of the chat window. In-memory only,
	// never persisted; nil after a reload until the next capture.
	Preview image.Image
}

// NewChat creates a chat for a freshly discovered window. The whole
// initial batch counts as unread.
func NewChat(name string, msgs []Message) *Chat {
	c := &Chat{
		ID:            uuid.New(),
		Name:          name,
		Messages:      msgs,
		UnreadCount:   len(msgs),
		LastMessageAt: time.Now(),
	}
	if len(msgs) > 0 {
		c.LastMessageAt = msgs[len(msgs)-1].Timestamp
	}
	return c
}

// Append adds a batch of new messages, keeping the unread count and
// last-message timestamp in step with the message list.
func (c *Chat) Append(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	c.Messages = append(c.Messages, msgs...)
	c.UnreadCount += len(msgs)
	c.LastMessageAt = msgs[len(msgs)-1].Timestamp
}

// RecentMessages returns the last n messages from the history.
func (c *Chat) RecentMessages(n int) []Message {
	if n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
