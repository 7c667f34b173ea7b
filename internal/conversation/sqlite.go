package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    sources         TEXT,
    metadata        TEXT,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// SQLiteStore keeps conversations in a SQLite database so they survive
// restarts.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(path string, maxHistory int) (*SQLiteStore, error) {
	maxHistory = windowSize(maxHistory)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, maxHistory: maxHistory}, nil
}

func (s *SQLiteStore) Ensure(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = NewID()
	}
	if err := ensureTx(ctx, s.db, id); err != nil {
		return "", err
	}
	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureTx(ctx context.Context, db execer, id string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, DefaultTitle, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, msg Message) error {
	var sources, metadata sql.NullString
	if msg.Sources != nil {
		b, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("encode sources: %w", err)
		}
		sources = sql.NullString{String: string(b), Valid: true}
	}
	if len(msg.Metadata) > 0 {
		metadata = sql.NullString{String: string(msg.Metadata), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := ensureTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, sources, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, msg.Role, msg.Content, sources, metadata, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if msg.Role == RoleUser {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET title = ? WHERE id = ? AND title = ?`,
			Title(msg.Content), id, DefaultTitle); err != nil {
			return fmt.Errorf("set title: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?)`,
		id, id, s.maxHistory); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentForModel(ctx context.Context, id string) ([]Message, error) {
	msgs, _, err := s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return stripForModel(msgs), nil
}

func (s *SQLiteStore) Messages(ctx context.Context, id string) ([]Message, bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = ?)`, id).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("lookup conversation: %w", err)
	}
	if !exists {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, sources, metadata FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, false, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var sources, metadata sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &sources, &metadata); err != nil {
			return nil, false, fmt.Errorf("scan message: %w", err)
		}
		if sources.Valid {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				return nil, false, fmt.Errorf("decode sources: %w", err)
			}
		}
		if metadata.Valid {
			m.Metadata = json.RawMessage(metadata.String)
		}
		msgs = append(msgs, m)
	}
	return msgs, true, rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, COUNT(m.id)
		FROM conversations c JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.seq
		ORDER BY c.seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
