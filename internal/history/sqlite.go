// Package history records past classifications in SQLite.
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

// Entry is one recorded classification.
type Entry struct {
	ID            string    `json:"id"`
	Food          string    `json:"food"`
	Confidence    float64   `json:"confidence"`
	Calories      float64   `json:"calories"`
	GlycemicIndex int       `json:"glycemic_index"`
	CreatedAt     time.Time `json:"created_at"`
}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS classifications (
        id TEXT PRIMARY KEY,
        food TEXT NOT NULL,
        confidence REAL NOT NULL,
        calories REAL NOT NULL,
        glycemic_index INTEGER NOT NULL,
        created_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Record stores e, assigning an ID and timestamp when they are unset.
func (s *SQLiteStorage) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO classifications (id, food, confidence, calories, glycemic_index, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Food, e.Confidence, e.Calories, e.GlycemicIndex, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	query := `
        SELECT id, food, confidence, calories, glycemic_index, created_at
        FROM classifications
        ORDER BY created_at DESC
        LIMIT ?
    `

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e := &Entry{}
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Food, &e.Confidence, &e.Calories, &e.GlycemicIndex, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classifications: %w", err)
	}

	return entries, nil
}
