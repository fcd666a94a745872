package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRecord is the persisted form of a Message.
type MessageRecord struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Timestamp      time.Time `json:"timestamp"`
	Side           string    `json:"side"`
}

// ChatRecord is the persisted form of a Chat. Preview images are
// deliberately absent: they never survive a restart.
type ChatRecord struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Messages             []MessageRecord `json:"messages"`
	UnreadCount          int             `json:"unreadCount"`
	LastMessageTimestamp time.Time       `json:"lastMessageTimestamp"`
}

// Record converts the chat to its persisted form.
func (c *Chat) Record() ChatRecord {
	rec := ChatRecord{
		ID:                   c.ID.String(),
		Name:                 c.Name,
		Messages:             make([]MessageRecord, 0, len(c.Messages)),
		UnreadCount:          c.UnreadCount,
		LastMessageTimestamp: c.LastMessageAt,
	}
	for _, m := range c.Messages {
		rec.Messages = append(rec.Messages, MessageRecord{
			ID:             m.ID.String(),
			Sender:         m.Sender,
			OriginalText:   m.OriginalText,
			TranslatedText: m.TranslatedText,
			Timestamp:      m.Timestamp,
			Side:           string(m.Side),
		})
	}
	return rec
}

// ChatFromRecord rebuilds a chat from its persisted form. Unknown or
// malformed ids are replaced rather than rejected so a damaged row
// cannot block startup.
func ChatFromRecord(rec ChatRecord) *Chat {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		id = uuid.New()
	}
	c := &Chat{
		ID:            id,
		Name:          rec.Name,
		Messages:      make([]Message, 0, len(rec.Messages)),
		UnreadCount:   rec.UnreadCount,
		LastMessageAt: rec.LastMessageTimestamp,
	}
	for _, mr := range rec.Messages {
		mid, err := uuid.Parse(mr.ID)
		if err != nil {
			mid = uuid.New()
		}
		c.Messages = append(c.Messages, Message{
			ID:             mid,
			Sender:         mr.Sender,
			OriginalText:   mr.OriginalText,
			TranslatedText: mr.TranslatedText,
			Timestamp:      mr.Timestamp,
			Side:           ParseSide(mr.Side),
		})
	}
	if c.UnreadCount > len(c.Messages) {
		c.UnreadCount = len(c.Messages)
	}
	return c
}
