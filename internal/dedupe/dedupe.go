// Package dedupe decides which recognized messages are genuinely new
// relative to a chat's recent history. Screen recognition re-reads the
// same window every cycle, so most candidates are repeats of messages
// already accepted.
package dedupe

import (
	"github.com/evgray/chatglass/internal/domain"
	"github.com/evgray/chatglass/internal/similarity"
)

const (
	// DefaultThreshold is the similarity score at or above which a
	// candidate counts as a duplicate of an existing message.
	DefaultThreshold = 0.9

	// Lookback bounds how many recent messages are compared against.
	// Anything further back is allowed to repeat: people do send the
	// same phrase twice in a long conversation.
	Lookback = 10
)

// FilterNew returns the candidates that are not near-duplicates of any
// message in recent, preserving candidate order. A candidate is dropped
// only when an existing message has the same sender and original text
// scoring at or above threshold. Pure function; recent is typically the
// chat's last Lookback messages, or empty for a brand-new chat.
func FilterNew(candidates, recent []domain.Message, threshold float64) []domain.Message {
	if len(candidates) == 0 {
		return nil
	}
	if len(recent) == 0 {
		return candidates
	}

	fresh := make([]domain.Message, 0, len(candidates))
	for _, cand := range candidates {
		if !isDuplicate(cand, recent, threshold) {
			fresh = append(fresh, cand)
		}
	}
	return fresh
}

func isDuplicate(cand domain.Message, recent []domain.Message, threshold float64) bool {
	for _, existing := range recent {
		if existing.Sender != cand.Sender {
			continue
		}
		if similarity.Score(cand.OriginalText, existing.OriginalText) >= threshold {
			return true
		}
	}
	return false
}
