// Package store provides durable persistence for the chat collection.
package store

import (
	"context"

	"github.com/evgray/chatglass/internal/domain"
)

// Repository defines the interface for loading and saving chat history.
// Save writes the whole collection: the state is small and a full-state
// write keeps the on-disk ordering authoritative.
type Repository interface {
	// LoadChats retrieves all persisted chats in display order
	// (most-recently-updated first).
	LoadChats(ctx context.Context) ([]domain.ChatRecord, error)

	// SaveChats replaces the persisted collection with the given
	// records, preserving their order.
	SaveChats(ctx context.Context, records []domain.ChatRecord) error

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
