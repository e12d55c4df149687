package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection. It holds the kill score ledger
// and a few server settings; the world itself is never stored.
type DB struct {
	conn *sql.DB
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=2000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scores (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		ship_image_url TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("[db] migration error: %v", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertScore records a pilot's kill count. A lower score never replaces a
// higher one, so a respawned ship starting over keeps its best run.
func (db *DB) UpsertScore(item ScoreboardItem, at time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO scores (id, name, score, ship_image_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			score = MAX(scores.score, excluded.score),
			ship_image_url = excluded.ship_image_url,
			updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Score, item.ShipImageURL, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert score %s: %w", item.ID, err)
	}
	return nil
}

// TopScores returns the highest scores, best first
func (db *DB) TopScores(limit int) ([]ScoreboardItem, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := db.conn.Query(`
		SELECT id, name, score, ship_image_url, updated_at
		FROM scores
		ORDER BY score DESC, updated_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	result := make([]ScoreboardItem, 0, limit)
	for rows.Next() {
		var it ScoreboardItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Score, &it.ShipImageURL, &it.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// GetSetting returns a stored setting, or "" when unset
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[db] read setting %s: %v", key, err)
		}
		return ""
	}
	return value
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
