// Package store persists high scores and finished-game results in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/MJE43/photohunt/internal/highscore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteDB is the durable backend for the high-score table and game history.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (creating if needed) the database at path.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded migrations.
func (s *SQLiteDB) Migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Load returns a game's high scores in rank order.
func (s *SQLiteDB) Load(ctx context.Context, gameID string) ([]highscore.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, score, created_at FROM high_scores WHERE game_id = ? ORDER BY position ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("store: load high scores: %w", err)
	}
	defer rows.Close()

	var out []highscore.Entry
	for rows.Next() {
		var e highscore.Entry
		if err := rows.Scan(&e.Name, &e.Score, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan high score: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Save replaces a game's table with entries.
func (s *SQLiteDB) Save(ctx context.Context, gameID string, entries []highscore.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM high_scores WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("store: clear high scores: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO high_scores (id, game_id, position, name, score, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), gameID, i, e.Name, e.Score, ts.UTC()); err != nil {
			return fmt.Errorf("store: insert high score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Result is one finished game.
type Result struct {
	ID            string    `json:"id"`
	GameID        string    `json:"gameId"`
	Score         int       `json:"score"`
	RoundsCleared int       `json:"roundsCleared"`
	Outcome       string    `json:"outcome"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// RecordResult stores a finished game. An empty ID is generated.
func (s *SQLiteDB) RecordResult(ctx context.Context, r Result) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_results (id, game_id, score, rounds_cleared, outcome, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.GameID, r.Score, r.RoundsCleared, r.Outcome, r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: record result: %w", err)
	}
	return nil
}

// RecentResults lists the newest results first.
func (s *SQLiteDB) RecentResults(ctx context.Context, gameID string, limit int) ([]Result, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, score, rounds_cleared, outcome, finished_at
		 FROM game_results WHERE game_id = ? ORDER BY finished_at DESC LIMIT ?`, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.GameID, &r.Score, &r.RoundsCleared, &r.Outcome, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
