package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/pmills/gamewatch/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string.
// The Z suffix ensures the Go sqlite driver parses it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Store provides database access. Writes are synchronous: when a method
// returns without error the row is durable.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Playtime ledger ---

// RecordFirstJoin creates the (game, player) ledger entry if absent.
// Existing entries are left untouched.
func (s *Store) RecordFirstJoin(ctx context.Context, game, player string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playtime (game, player, first_seen, total_seconds)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(game, player) DO NOTHING
	`, game, player, formatTimestamp(ts))
	if err != nil {
		return fmt.Errorf("recording first join for %s/%s: %w", game, player, err)
	}
	return nil
}

// AddPlaytime adds a completed session's duration to the cumulative total.
// Negative durations are a caller bug and are rejected loudly.
func (s *Store) AddPlaytime(ctx context.Context, game, player string, seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("adding playtime for %s/%s: negative duration %d", game, player, seconds)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE playtime SET total_seconds = total_seconds + ?
		WHERE game = ? AND player = ?
	`, seconds, game, player)
	if err != nil {
		return fmt.Errorf("adding playtime for %s/%s: %w", game, player, err)
	}
	return nil
}

// GetPlaytime returns the ledger entry for (game, player), or nil if none exists
func (s *Store) GetPlaytime(ctx context.Context, game, player string) (*domain.PlaytimeEntry, error) {
	var entry domain.PlaytimeEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT game, player, first_seen, total_seconds FROM playtime
		WHERE game = ? AND player = ?
	`, game, player).Scan(&entry.Game, &entry.Player, &entry.FirstSeen, &entry.TotalSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListPlaytime returns all ledger entries for a game, most playtime first
func (s *Store) ListPlaytime(ctx context.Context, game string) ([]domain.PlaytimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game, player, first_seen, total_seconds FROM playtime
		WHERE game = ? ORDER BY total_seconds DESC, player
	`, game)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PlaytimeEntry
	for rows.Next() {
		var entry domain.PlaytimeEntry
		if err := rows.Scan(&entry.Game, &entry.Player, &entry.FirstSeen, &entry.TotalSeconds); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- Points accounts ---

// AwardPoints adds points to a player's balance, creating the account if needed
func (s *Store) AwardPoints(ctx context.Context, player string, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points (player, balance) VALUES (?, ?)
		ON CONFLICT(player) DO UPDATE SET balance = balance + excluded.balance
	`, player, amount)
	if err != nil {
		return fmt.Errorf("awarding %d points to %s: %w", amount, player, err)
	}
	return nil
}

// GetPoints returns a player's point balance, zero if no account exists
func (s *Store) GetPoints(ctx context.Context, player string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM points WHERE player = ?
	`, player).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}
