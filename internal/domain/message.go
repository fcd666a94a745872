// Package domain defines the core chat and message types shared across
// the reconciliation engine, the store, and the API layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Side indicates which side of the conversation a message belongs to,
// as hinted by the recognition service.
type Side string

const (
	// SideSelf marks messages sent by the local user.
	SideSelf Side = "self"
	// SideOther marks messages received from the conversation partner.
	SideOther Side = "other"
)

// ParseSide maps a recognition hint to a Side, defaulting to SideOther
// for anything unrecognized.
func ParseSide(s string) Side {
	if s == string(SideSelf) {
		return SideSelf
	}
	return SideOther
}

// Message is a single recognized chat message. Messages are immutable
// once created; the engine never edits or deletes them.
type Message struct {
	ID             uuid.UUID `json:"id"`
	Sender         string    `json:"sender"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Timestamp      time.Time `json:"timestamp"`
	Side           Side      `json:"side"`
}
