package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var ErrClosed = errors.New("local store is closed")

// LocalStore is the persisted mirror of the remote deceased dataset.
type LocalStore interface {
	Initialize(ctx context.Context) error
	ReadAll(ctx context.Context) ([]DeceasedRow, error)
	UpsertMany(ctx context.Context, rows []DeceasedRow) error
	ReplaceAll(ctx context.Context, rows []DeceasedRow) error
	Count(ctx context.Context) (int, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS deceased (
	id INTEGER PRIMARY KEY,
	fname TEXT,
	lname TEXT,
	mname TEXT,
	suffix TEXT,
	full_name TEXT,
	gender TEXT,
	birthday TEXT,
	death_date TEXT,
	death_certificate TEXT,
	lot_id INTEGER,
	lot_number TEXT,
	lot_coordinates TEXT,
	lot_image TEXT,
	is_private INTEGER NOT NULL DEFAULT 0,
	visibility TEXT,
	synced_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deceased_lot ON deceased(lot_id);
CREATE INDEX IF NOT EXISTS idx_deceased_full_name ON deceased(full_name);
`

const selectAll = `SELECT id, fname, lname, mname, suffix, full_name, gender, birthday, death_date,
	death_certificate, lot_id, lot_number, lot_coordinates, lot_image, is_private, visibility, synced_at
FROM deceased ORDER BY id`

const upsertRow = `INSERT INTO deceased (
	id, fname, lname, mname, suffix, full_name, gender, birthday, death_date,
	death_certificate, lot_id, lot_number, lot_coordinates, lot_image, is_private, visibility, synced_at
) VALUES (
	:id, :fname, :lname, :mname, :suffix, :full_name, :gender, :birthday, :death_date,
	:death_certificate, :lot_id, :lot_number, :lot_coordinates, :lot_image, :is_private, :visibility, :synced_at
)
ON CONFLICT(id) DO UPDATE SET
	fname = excluded.fname,
	lname = excluded.lname,
	mname = excluded.mname,
	suffix = excluded.suffix,
	full_name = excluded.full_name,
	gender = excluded.gender,
	birthday = excluded.birthday,
	death_date = excluded.death_date,
	death_certificate = excluded.death_certificate,
	lot_id = excluded.lot_id,
	lot_number = excluded.lot_number,
	lot_coordinates = excluded.lot_coordinates,
	lot_image = excluded.lot_image,
	is_private = excluded.is_private,
	visibility = excluded.visibility,
	synced_at = excluded.synced_at`

type Store struct {
	mu   sync.RWMutex
	db   *sqlx.DB
	path string
}

// Open connects to the SQLite file at cfg.Path, creating parent directories.
// Use ":memory:" for a private in-process database.
func Open(cfg *config.DbConfig) (*Store, error) {
	path := cfg.Path
	maxOpen := cfg.MaxOpenConns
	if path == ":memory:" {
		maxOpen = 1
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if maxOpen <= 0 {
		maxOpen = 1
	}

	busy := cfg.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(wal)&_txlock=immediate", path, busy)

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Initialize creates the schema when absent. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) ReadAll(ctx context.Context) ([]DeceasedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	var rows []DeceasedRow
	if err := s.db.SelectContext(ctx, &rows, selectAll); err != nil {
		return nil, fmt.Errorf("failed to read deceased rows: %w", err)
	}
	return rows, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM deceased"); err != nil {
		return 0, fmt.Errorf("failed to count deceased rows: %w", err)
	}
	return count, nil
}

// UpsertMany writes every row in one transaction; any failure rolls back the batch.
func (s *Store) UpsertMany(ctx context.Context, rows []DeceasedRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return upsertRows(ctx, tx, rows)
	})
}

// ReplaceAll makes the table hold exactly rows: upserts them and deletes every
// other identity, in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, rows []DeceasedRow) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := upsertRows(ctx, tx, rows); err != nil {
			return err
		}
		return deleteMissing(ctx, tx, rows)
	})
}

func (s *Store) freshTransaction(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.freshTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertRows(ctx context.Context, tx *sqlx.Tx, rows []DeceasedRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, upsertRow)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to upsert deceased %d: %w", row.ID, err)
		}
	}
	return nil
}

func deleteMissing(ctx context.Context, tx *sqlx.Tx, keep []DeceasedRow) error {
	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM deceased"); err != nil {
			return fmt.Errorf("failed to clear deceased rows: %w", err)
		}
		return nil
	}

	// A temp keep-list avoids the bound parameter limit of NOT IN (?, ...).
	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS sync_keep (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("failed to create keep table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_keep"); err != nil {
		return fmt.Errorf("failed to reset keep table: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, "INSERT OR IGNORE INTO sync_keep (id) VALUES (?)")
	if err != nil {
		return fmt.Errorf("failed to prepare keep insert: %w", err)
	}
	defer stmt.Close()
	for _, row := range keep {
		if _, err := stmt.ExecContext(ctx, row.ID); err != nil {
			return fmt.Errorf("failed to record kept id %d: %w", row.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM deceased WHERE id NOT IN (SELECT id FROM sync_keep)"); err != nil {
		return fmt.Errorf("failed to delete stale deceased rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_keep"); err != nil {
		return fmt.Errorf("failed to reset keep table: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and releases the connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
