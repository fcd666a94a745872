package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evgray/chatglass/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	saveMu sync.Mutex // Serializes full-collection writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		unread_count INTEGER NOT NULL DEFAULT 0,
		last_message_at TEXT NOT NULL,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_position ON chats(position);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender TEXT NOT NULL,
		original_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		side TEXT NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadChats retrieves all persisted chats in display order.
func (s *SQLiteStore) LoadChats(ctx context.Context) ([]domain.ChatRecord, error) {
	query := `
		SELECT id, name, unread_count, last_message_at
		FROM chats ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer closeRows(rows, "chats")

	var records []domain.ChatRecord
	for rows.Next() {
		var rec domain.ChatRecord
		var lastMessageAt string

		if err := rows.Scan(&rec.ID, &rec.Name, &rec.UnreadCount, &lastMessageAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}

		rec.LastMessageTimestamp, err = parseTimestamp(lastMessageAt)
		if err != nil {
			return nil, fmt.Errorf("chat %s: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	for i := range records {
		msgs, err := s.loadMessages(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Messages = msgs
	}

	return records, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, chatID string) ([]domain.MessageRecord, error) {
	query := `
		SELECT id, sender, original_text, translated_text, timestamp, side
		FROM messages WHERE chat_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages for chat %s: %w", chatID, err)
	}
	defer closeRows(rows, "messages")

	var msgs []domain.MessageRecord
	for rows.Next() {
		var mr domain.MessageRecord
		var timestamp string

		if err := rows.Scan(&mr.ID, &mr.Sender, &mr.OriginalText, &mr.TranslatedText, &timestamp, &mr.Side); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		mr.Timestamp, err = parseTimestamp(timestamp)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", mr.ID, err)
		}

		msgs = append(msgs, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages for chat %s: %w", chatID, err)
	}

	return msgs, nil
}

// SaveChats replaces the persisted collection in one transaction. The
// whole write is atomic: a crash mid-save leaves the previous state.
func (s *SQLiteStore) SaveChats(ctx context.Context, records []domain.ChatRecord) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("failed to roll back save transaction", "error", rollbackErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}

	chatStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chats (id, name, unread_count, last_message_at, position)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chat insert: %w", err)
	}
	defer closeStmt(chatStmt, "chat insert")

	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, chat_id, sender, original_text, translated_text, timestamp, side, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer closeStmt(msgStmt, "message insert")

	for pos, rec := range records {
		_, err := chatStmt.ExecContext(ctx,
			rec.ID, rec.Name, rec.UnreadCount,
			formatTimestamp(rec.LastMessageTimestamp), pos,
		)
		if err != nil {
			return fmt.Errorf("insert chat %s: %w", rec.ID, err)
		}

		for seq, mr := range rec.Messages {
			_, err := msgStmt.ExecContext(ctx,
				mr.ID, rec.ID, mr.Sender, mr.OriginalText, mr.TranslatedText,
				formatTimestamp(mr.Timestamp), mr.Side, seq,
			)
			if err != nil {
				return fmt.Errorf("insert message %s: %w", mr.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC 3339 text to keep the schema readable
// and JSON-compatible.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func closeStmt(stmt *sql.Stmt, what string) {
	if err := stmt.Close(); err != nil {
		slog.Warn("failed to close statement", "stmt", what, "error", err)
	}
}
