// Package chats owns the in-memory chat collection: merge semantics,
// most-recently-updated ordering, unread accounting, selection tracking,
// and versioned snapshot publication to consumers.
package chats

import (
	"image"
	"sync"

	"github.com/evgray/chatglass/internal/domain"
	"github.com/google/uuid"
)

// Snapshot is an immutable, versioned view of the collection handed to
// consumers. The version increases by exactly one per applied batch or
// consumer action, so a UI can react to bumps instead of diffing.
type Snapshot struct {
	Version    uint64              `json:"version"`
	Chats      []domain.ChatRecord `json:"chats"`
	SelectedID string              `json:"selectedId,omitempty"`
}

// List is the single owner of the chat collection. Every mutation
// happens under one mutex, so observers can never see a chat whose
// messages and unread count disagree.
type List struct {
	mu       sync.RWMutex
	order    []*domain.Chat // most-recently-updated first
	selected uuid.UUID      // zero value means nothing selected
	version  uint64
	subs     map[chan Snapshot]struct{}
}

// NewList creates an empty chat collection.
func NewList() *List {
	return &List{subs: make(map[chan Snapshot]struct{})}
}

// Load replaces the collection with persisted records, preserving their
// order. Used once at startup; resets selection.
func (l *List) Load(records []domain.ChatRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = make([]*domain.Chat, 0, len(records))
	for _, rec := range records {
		l.order = append(l.order, domain.ChatFromRecord(rec))
	}
	l.selected = uuid.UUID{}
	l.bumpLocked()
}

// ApplyBatch merges one window's filtered messages and fresh preview
// into the collection. Returns the number of messages accepted.
//
// Cases:
//   - existing chat, new messages: append, bump unread, MRU-promote.
//   - existing chat, no new messages: refresh preview in place, order
//     and unread untouched.
//   - no chat, new messages: create at the front, fully unread.
//   - no chat, no messages: no-op, nothing is created for an empty
//     observation.
func (l *List) ApplyBatch(windowName string, msgs []domain.Message, preview image.Image) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexByNameLocked(windowName)
	switch {
	case idx >= 0 && len(msgs) > 0:
		c := l.order[idx]
		c.Append(msgs)
		c.Preview = preview
		l.promoteLocked(idx)
	case idx >= 0:
		l.order[idx].Preview = preview
	case len(msgs) > 0:
		c := domain.NewChat(windowName, msgs)
		c.Preview = preview
		l.order = append([]*domain.Chat{c}, l.order...)
	default:
		return 0
	}

	l.bumpLocked()
	return len(msgs)
}

// RecentMessages returns copies of the last n messages of the named
// chat, or nil if the chat does not exist yet.
func (l *List) RecentMessages(windowName string, n int) []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.indexByNameLocked(windowName)
	if idx < 0 {
		return nil
	}
	recent := l.order[idx].RecentMessages(n)
	out := make([]domain.Message, len(recent))
	copy(out, recent)
	return out
}

// Select marks the chat as the consumer's current chat and clears its
// unread count, mirroring a user opening the conversation. Returns
// false if no chat has that id.
func (l *List) Select(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.byIDLocked(id)
	if c == nil {
		return false
	}
	l.selected = id
	c.UnreadCount = 0
	l.bumpLocked()
	return true
}

// MarkRead clears the unread count without changing selection. Message
// count and order are untouched.
func (l *List) MarkRead(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.byIDLocked(id)
	if c == nil {
		return false
	}
	c.UnreadCount = 0
	l.bumpLocked()
	return true
}

// Remove deletes a chat from the collection. This is the only removal
// path; there is no automatic eviction.
func (l *List) Remove(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, c := range l.order {
		if c.ID == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			if l.selected == id {
				l.selected = uuid.UUID{}
			}
			l.bumpLocked()
			return true
		}
	}
	return false
}

// SelectedID reports the currently selected chat, if it still exists.
// Selection survives merges and reordering by identity, not position.
func (l *List) SelectedID() (uuid.UUID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.selected == (uuid.UUID{}) {
		return uuid.UUID{}, false
	}
	if l.byIDLocked(l.selected) == nil {
		return uuid.UUID{}, false
	}
	return l.selected, true
}

// Records returns the persisted form of the collection in display
// order.
func (l *List) Records() []domain.ChatRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.recordsLocked()
}

// Preview returns the chat's latest preview image, or nil if the chat
// is unknown or has not been captured since the last restart.
func (l *List) Preview(id uuid.UUID) image.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if c := l.byIDLocked(id); c != nil {
		return c.Preview
	}
	return nil
}

// Snapshot returns the current versioned view of the collection.
func (l *List) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Subscribe registers a consumer for snapshot updates. The returned
// channel receives the current snapshot immediately and then one
// snapshot per version bump; slow consumers are coalesced to the
// newest state rather than blocking the engine. The cancel func must
// be called when done.
func (l *List) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	ch <- l.snapshotLocked()
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
	return ch, cancel
}

// bumpLocked advances the version and fans the new snapshot out to
// subscribers. Callers must hold the write lock.
func (l *List) bumpLocked() {
	l.version++
	snap := l.snapshotLocked()
	for ch := range l.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot the consumer hasn't read and
			// replace it with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (l *List) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version: l.version,
		Chats:   l.recordsLocked(),
	}
	if l.selected != (uuid.UUID{}) && l.byIDLocked(l.selected) != nil {
		snap.SelectedID = l.selected.String()
	}
	return snap
}

func (l *List) recordsLocked() []domain.ChatRecord {
	records := make([]domain.ChatRecord, 0, len(l.order))
	for _, c := range l.order {
		records = append(records, c.Record())
	}
	return records
}

func (l *List) promoteLocked(idx int) {
	c := l.order[idx]
	l.order = append(l.order[:idx], l.order[idx+1:]...)
	l.order = append([]*domain.Chat{c}, l.order...)
}

func (l *List) indexByNameLocked(name string) int {
	for i, c := range l.order {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (l *List) byIDLocked(id uuid.UUID) *domain.Chat {
	for _, c := range l.order {
		if c.ID == id {
			return c
		}
	}
	return nil
}
