package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buidlcat/friendrekt/models"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite persistence for the snipe audit log.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("storage: db path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", filepath.Dir(dbPath), err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	store := &Store{db: db}
	if err := store.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSnipe appends one submission attempt.
func (s *Store) SaveSnipe(ctx context.Context, rec *models.SnipeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO snipes (
            trigger_hash, tx_hash, subject, username, external_id, followers,
            acquisition_limit, amount, reference_price, nonce, max_fee_per_gas,
            max_priority_fee, success, latency_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		rec.TriggerHash, rec.TxHash, rec.Subject, rec.Username, rec.ExternalID,
		int64(rec.Followers), int64(rec.AcquisitionLimit), int64(rec.Amount),
		rec.ReferencePrice, int64(rec.Nonce), rec.MaxFeePerGas, rec.MaxPriorityFee,
		rec.Success, rec.LatencyMs, timeString(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: insert snipe: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage: snipe id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListSnipes returns the most recent attempts, newest first.
func (s *Store) ListSnipes(ctx context.Context, limit int) ([]models.SnipeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, trigger_hash, tx_hash, subject, username, external_id, followers,
               acquisition_limit, amount, reference_price, nonce, max_fee_per_gas,
               max_priority_fee, success, latency_ms, created_at
        FROM snipes
        ORDER BY id DESC
        LIMIT ?
    `, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("storage: list snipes: %w", err)
	}
	defer rows.Close()

	var out []models.SnipeRecord
	for rows.Next() {
		var (
			rec                            models.SnipeRecord
			followers, limitCol, amt, nonc int64
			createdAt                      string
		)
		if err := rows.Scan(
			&rec.ID, &rec.TriggerHash, &rec.TxHash, &rec.Subject, &rec.Username, &rec.ExternalID,
			&followers, &limitCol, &amt, &rec.ReferencePrice, &nonc, &rec.MaxFeePerGas,
			&rec.MaxPriorityFee, &rec.Success, &rec.LatencyMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan snipe: %w", err)
		}
		rec.Followers = uint64(followers)
		rec.AcquisitionLimit = uint64(limitCol)
		rec.Amount = uint64(amt)
		rec.Nonce = uint64(nonc)
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSnipeSummary counts attempts by outcome.
func (s *Store) GetSnipeSummary(ctx context.Context) (SnipeSummary, error) {
	var sum SnipeSummary
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0)
        FROM snipes
    `).Scan(&sum.Total, &sum.Succeeded)
	if err != nil {
		return sum, fmt.Errorf("storage: snipe summary: %w", err)
	}
	sum.Failed = sum.Total - sum.Succeeded
	return sum, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	const schema = `
    CREATE TABLE IF NOT EXISTS snipes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        trigger_hash TEXT NOT NULL,
        tx_hash TEXT NOT NULL DEFAULT '',
        subject TEXT NOT NULL,
        username TEXT,
        external_id TEXT,
        followers INTEGER NOT NULL DEFAULT 0,
        acquisition_limit INTEGER NOT NULL DEFAULT 0,
        amount INTEGER NOT NULL DEFAULT 0,
        reference_price TEXT,
        nonce INTEGER NOT NULL,
        max_fee_per_gas TEXT,
        max_priority_fee TEXT,
        success BOOLEAN NOT NULL DEFAULT 0,
        latency_ms INTEGER NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_snipes_subject ON snipes(subject);
    CREATE INDEX IF NOT EXISTS idx_snipes_created ON snipes(created_at);
    `

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
