// Package results persists race outcomes to an embedded SQLite database.
package results

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pixelderby/raceroom/internal/relay"
	"github.com/pixelderby/raceroom/internal/room"
)

const schema = `
CREATE TABLE IF NOT EXISTS race_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	winner_id TEXT NOT NULL,
	winner_name TEXT NOT NULL,
	color_index INTEGER NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_race_results_recorded_at ON race_results (recorded_at);
`

// Store records and lists race winners.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply results schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one race outcome.
func (s *Store) Record(roomID string, w room.Winner) error {
	_, err := s.db.Exec(
		`INSERT INTO race_results (room_id, winner_id, winner_name, color_index, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, w.ID, w.Name, w.ColorIndex, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert race result: %w", err)
	}
	return nil
}

// Recent returns the latest race outcomes, newest first.
func (s *Store) Recent(limit int) ([]relay.Result, error) {
	rows, err := s.db.Query(
		`SELECT room_id, winner_id, winner_name, color_index, recorded_at
		 FROM race_results
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query race results: %w", err)
	}
	defer rows.Close()

	var out []relay.Result
	for rows.Next() {
		var r relay.Result
		if err := rows.Scan(&r.RoomID, &r.WinnerID, &r.WinnerName, &r.ColorIndex, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan race result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
