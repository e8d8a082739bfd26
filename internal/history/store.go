package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Entry is one recorded shell command.
type Entry struct {
	ID           int64
	UserID       int64
	Command      string
	Kind         string // plain, chdir, raw
	CommandID    string
	DispatchedAt time.Time
}

// Store is the on-disk command audit log. Every dispatched command is
// recorded with who ran it and when, queryable from chat.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds history store configuration
type Config struct {
	DBPath string
	Logger zerolog.Logger
}

// NewStore opens (and if needed creates) the history database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger.With().Str("module", "history").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.DBPath).Msg("History store opened")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			command TEXT NOT NULL,
			kind TEXT NOT NULL,
			command_id TEXT NOT NULL,
			dispatched_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_commands_user ON commands(user_id, dispatched_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends one command to the log.
func (s *Store) Record(userID int64, command, kind, commandID string) error {
	_, err := s.db.Exec(
		"INSERT INTO commands (user_id, command, kind, command_id, dispatched_at) VALUES (?, ?, ?, ?, ?)",
		userID, command, kind, commandID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Recent returns the user's last limit commands, newest first.
func (s *Store) Recent(userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, command, kind, command_id, dispatched_at
		FROM commands
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Command, &e.Kind, &e.CommandID, &ts); err != nil {
			return nil, err
		}
		e.DispatchedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns how many commands a user has recorded.
func (s *Store) Count(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM commands WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// Prune removes entries older than maxAge and returns how many went.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := s.db.Exec("DELETE FROM commands WHERE dispatched_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("Pruned old history entries")
	}
	return int(removed), nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}
