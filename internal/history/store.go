// Package history keeps an optional local log of chat exchanges in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Exchange is one answered (or failed) chat turn.
type Exchange struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Prompt      string    `json:"prompt"`
	Response    string    `json:"response"`
	InputTokens int       `json:"inputTokens"`
	IsError     bool      `json:"isError"`
	Retried     bool      `json:"retried"`
}

type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		is_error INTEGER NOT NULL DEFAULT 0,
		retried INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at DESC);`,
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create history schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Save records an exchange, assigning an id and timestamp when missing.
func (s *Store) Save(ctx context.Context, ex Exchange) (string, error) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}

	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges(id, created_at, provider, model, prompt, response, input_tokens, is_error, retried)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID,
		ex.CreatedAt.UnixMilli(),
		ex.Provider,
		ex.Model,
		ex.Prompt,
		ex.Response,
		ex.InputTokens,
		boolInt(ex.IsError),
		boolInt(ex.Retried),
	)
	if err != nil {
		return "", fmt.Errorf("save exchange: %w", err)
	}

	return ex.ID, nil
}

// Recent returns up to limit exchanges, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, provider, model, prompt, response, input_tokens, is_error, retried
		 FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	out := make([]Exchange, 0, limit)

	for rows.Next() {
		var (
			ex        Exchange
			createdAt int64
			isError   int
			retried   int
		)

		if err := rows.Scan(&ex.ID, &createdAt, &ex.Provider, &ex.Model, &ex.Prompt, &ex.Response, &ex.InputTokens, &isError, &retried); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}

		ex.CreatedAt = time.UnixMilli(createdAt)
		ex.IsError = isError != 0
		ex.Retried = retried != 0
		out = append(out, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
