package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ScoreTally is the per-room win/loss/draw record.
type ScoreTally struct {
	Host  int
	Guest int
	Draws int
}

// ScoreStore is the room coordinator's view of the tally store. Calls
// are synchronous and cheap; the coordinator invokes them inline.
type ScoreStore interface {
	Scores(roomKey string) (ScoreTally, error)
	AddWin(roomKey, role string) (ScoreTally, error)
	AddDraw(roomKey string) (ScoreTally, error)
	Close() error
}

type sqliteScores struct {
	db *sql.DB
}

const scoresSchema = `CREATE TABLE IF NOT EXISTS scores (
	room_key TEXT PRIMARY KEY,
	host INTEGER NOT NULL DEFAULT 0,
	guest INTEGER NOT NULL DEFAULT 0,
	draws INTEGER NOT NULL DEFAULT 0
)`

// openScoreStore opens (or creates) the score database under dir.
func openScoreStore(dir string) (ScoreStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := filepath.Join(dir, "scores.db") + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open score db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping score db: %w", err)
	}
	if _, err := db.Exec(scoresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create scores table: %w", err)
	}

	return &sqliteScores{db: db}, nil
}

func (s *sqliteScores) Close() error {
	return s.db.Close()
}

func (s *sqliteScores) Scores(roomKey string) (ScoreTally, error) {
	var tally ScoreTally
	err := s.db.QueryRow(
		`SELECT host, guest, draws FROM scores WHERE room_key = ?`, roomKey,
	).Scan(&tally.Host, &tally.Guest, &tally.Draws)
	if err == sql.ErrNoRows {
		return ScoreTally{}, nil
	}
	if err != nil {
		return ScoreTally{}, fmt.Errorf("read scores for %q: %w", roomKey, err)
	}
	return tally, nil
}

func (s *sqliteScores) AddWin(roomKey, role string) (ScoreTally, error) {
	var query string
	switch role {
	case roleHost:
		query = `INSERT INTO scores (room_key, host) VALUES (?, 1)
			ON CONFLICT(room_key) DO UPDATE SET host = host + 1`
	case roleGuest:
		query = `INSERT INTO scores (room_key, guest) VALUES (?, 1)
			ON CONFLICT(room_key) DO UPDATE SET guest = guest + 1`
	default:
		return ScoreTally{}, fmt.Errorf("unknown role %q", role)
	}

	if _, err := s.db.Exec(query, roomKey); err != nil {
		return ScoreTally{}, fmt.Errorf("record win for %q: %w", roomKey, err)
	}
	return s.Scores(roomKey)
}

func (s *sqliteScores) AddDraw(roomKey string) (ScoreTally, error) {
	_, err := s.db.Exec(`INSERT INTO scores (room_key, draws) VALUES (?, 1)
		ON CONFLICT(room_key) DO UPDATE SET draws = draws + 1`, roomKey)
	if err != nil {
		return ScoreTally{}, fmt.Errorf("record draw for %q: %w", roomKey, err)
	}
	return s.Scores(roomKey)
}
