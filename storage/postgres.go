package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/buidlcat/friendrekt/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the snipe audit log in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresDSN builds a connection string from POSTGRES_* environment variables.
func PostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "friendrekt")
	password := getEnv("POSTGRES_PASSWORD", "friendrekt")
	dbname := getEnv("POSTGRES_DB", "friendrekt")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=10&pool_min_conns=2",
		user, password, host, port, dbname)
}

// NewPostgres connects with PostgresDSN and creates the schema.
func NewPostgres(ctx context.Context) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	// Audit writes must never stall a handler for long.
	config.ConnConfig.RuntimeParams["statement_timeout"] = "5000"
	config.ConnConfig.RuntimeParams["lock_timeout"] = "2000"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Close releases database connections
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// SaveSnipe appends one submission attempt.
func (s *PostgresStore) SaveSnipe(ctx context.Context, rec *models.SnipeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO snipes (
			trigger_hash, tx_hash, subject, username, external_id, followers,
			acquisition_limit, amount, reference_price, nonce, max_fee_per_gas,
			max_priority_fee, success, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`,
		rec.TriggerHash, rec.TxHash, rec.Subject, rec.Username, rec.ExternalID,
		int64(rec.Followers), int64(rec.AcquisitionLimit), int64(rec.Amount),
		rec.ReferencePrice, int64(rec.Nonce), rec.MaxFeePerGas, rec.MaxPriorityFee,
		rec.Success, rec.LatencyMs, rec.CreatedAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("postgres: insert snipe: %w", err)
	}
	return nil
}

// ListSnipes returns the most recent attempts, newest first.
func (s *PostgresStore) ListSnipes(ctx context.Context, limit int) ([]models.SnipeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, trigger_hash, tx_hash, subject, username, external_id, followers,
		       acquisition_limit, amount, reference_price, nonce, max_fee_per_gas,
		       max_priority_fee, success, latency_ms, created_at
		FROM snipes
		ORDER BY id DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list snipes: %w", err)
	}
	defer rows.Close()

	var out []models.SnipeRecord
	for rows.Next() {
		var (
			rec                            models.SnipeRecord
			followers, limitCol, amt, nonc int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.TriggerHash, &rec.TxHash, &rec.Subject, &rec.Username, &rec.ExternalID,
			&followers, &limitCol, &amt, &rec.ReferencePrice, &nonc, &rec.MaxFeePerGas,
			&rec.MaxPriorityFee, &rec.Success, &rec.LatencyMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snipe: %w", err)
		}
		rec.Followers = uint64(followers)
		rec.AcquisitionLimit = uint64(limitCol)
		rec.Amount = uint64(amt)
		rec.Nonce = uint64(nonc)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSnipeSummary counts attempts by outcome.
func (s *PostgresStore) GetSnipeSummary(ctx context.Context) (SnipeSummary, error) {
	var sum SnipeSummary
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM snipes
	`).Scan(&sum.Total, &sum.Succeeded)
	if err != nil {
		return sum, fmt.Errorf("postgres: snipe summary: %w", err)
	}
	sum.Failed = sum.Total - sum.Succeeded
	return sum, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snipes (
			id BIGSERIAL PRIMARY KEY,
			trigger_hash TEXT NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			followers BIGINT NOT NULL DEFAULT 0,
			acquisition_limit BIGINT NOT NULL DEFAULT 0,
			amount BIGINT NOT NULL DEFAULT 0,
			reference_price TEXT NOT NULL DEFAULT '',
			nonce BIGINT NOT NULL,
			max_fee_per_gas TEXT NOT NULL DEFAULT '',
			max_priority_fee TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL DEFAULT FALSE,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snipes_subject ON snipes(subject);
		CREATE INDEX IF NOT EXISTS idx_snipes_created ON snipes(created_at);
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
