package history

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

// SQLiteStore keeps history rows in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), historyDirMode); err != nil {
		return nil, fmt.Errorf("create history db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS intent_history (
		actor_key TEXT NOT NULL,
		intent_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		archived_at DATETIME,
		entry JSON NOT NULL,
		PRIMARY KEY (actor_key, intent_id)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Load returns the entries under key, most recent first.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry FROM intent_history
		WHERE actor_key = ?
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the entries under key in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, key string, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM intent_history WHERE actor_key = ?`, key); err != nil {
		return fmt.Errorf("delete history rows: %w", err)
	}
	for i, e := range entries {
		encoded, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO intent_history (actor_key, intent_id, position, archived_at, entry) VALUES (?, ?, ?, ?, ?)`,
			key, e.Intent.ID, i, e.ArchivedAt.UTC().Format(time.RFC3339Nano), string(encoded),
		)
		if err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

// Clear removes every row under key.
func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM intent_history WHERE actor_key = ?`, key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenStore opens the backend named by backend ("file" or "sqlite") at path.
func OpenStore(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
