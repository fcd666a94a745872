// Package recognize extracts and translates chat messages from window
// crops via the external recognition service. The service is treated as
// best-effort: its output may be noisy or duplicative, and deciding
// what is actually new is the caller's job.
package recognize

import (
	"context"
	"errors"
	"image"
)

// ErrRecognitionFailed is returned when the service could not extract
// messages from a crop. Scoped to the one window being processed.
var ErrRecognitionFailed = errors.New("recognition failed")

// Candidate is one extracted message, not yet accepted into any chat's
// history.
type Candidate struct {
	Sender         string `json:"sender"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	Side           string `json:"side"`
}

// Service extracts message candidates from a chat window crop, in
// on-screen order (oldest first).
type Service interface {
	Extract(ctx context.Context, crop image.Image) ([]Candidate, error)
}
