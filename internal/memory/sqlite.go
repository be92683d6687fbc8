package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// SQLiteStore persists threads in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create memory dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS thread_messages (
  thread_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY(thread_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_thread_messages_created ON thread_messages(thread_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("init memory schema: %w", err)
	}
	return nil
}

// Get returns the thread's messages in insertion order.
func (s *SQLiteStore) Get(ctx context.Context, threadID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM thread_messages WHERE thread_id=? ORDER BY seq`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []llm.Message{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("decode message in thread %s: %w", threadID, err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Append adds messages after the current tail.
func (s *SQLiteStore) Append(ctx context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int64
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq)+1, 0) FROM thread_messages WHERE thread_id=?`, threadID)
		if err := row.Scan(&next); err != nil {
			return err
		}
		return insertMessages(ctx, tx, threadID, next, msgs)
	})
}

// Replace swaps the thread's history in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, threadID string, msgs []llm.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id=?`, threadID); err != nil {
			return err
		}
		return insertMessages(ctx, tx, threadID, 0, msgs)
	})
}

// Clear deletes every message in the thread.
func (s *SQLiteStore) Clear(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id=?`, threadID)
	return err
}

// Threads lists threads, most recently updated first.
func (s *SQLiteStore) Threads(ctx context.Context) ([]ThreadInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id, COUNT(*), MAX(created_at) FROM thread_messages GROUP BY thread_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ThreadInfo{}
	for rows.Next() {
		var info ThreadInfo
		var updated int64
		if err := rows.Scan(&info.ID, &info.MessageCount, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(0, updated)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortThreads(out)
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sql.Tx, threadID string, seq int64, msgs []llm.Message) error {
	now := time.Now().UnixNano()
	for i, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages(thread_id, seq, data, created_at) VALUES(?,?,?,?)`,
			threadID, seq+int64(i), string(data), now,
		); err != nil {
			return err
		}
	}
	return nil
}
