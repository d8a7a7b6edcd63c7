package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"tma-generator/models"
)

// InitDB initializes the PostgreSQL database connection pool
func InitDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL database!")
	return pool, nil
}

// CreateSchema sets up the settings and run history tables.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(255) PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		updated_by VARCHAR(255)
	);

	CREATE TABLE IF NOT EXISTS generation_runs (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		course VARCHAR(50),
		tma_ref VARCHAR(20),
		output_dir TEXT,
		question_count INT NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		message TEXT
	);
	`
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}

// PostgresStore keeps the generation settings in the settings table, one row per key.
type PostgresStore struct {
	pool  *pgxpool.Pool
	actor string
	log   logrus.FieldLogger
}

// NewPostgresStore returns a settings store over pool. actor is recorded in updated_by.
func NewPostgresStore(pool *pgxpool.Pool, actor string, log logrus.FieldLogger) *PostgresStore {
	return &PostgresStore{pool: pool, actor: actor, log: log}
}

// Load merges the stored keys over the defaults. Query failures fall back to defaults.
func (s *PostgresStore) Load(ctx context.Context) (models.Settings, error) {
	defaults := models.DefaultSettings()
	rows, err := s.pool.Query(ctx, "SELECT key, value FROM settings WHERE key = ANY($1)", models.SettingsKeys)
	if err != nil {
		s.log.WithError(err).Warn("Could not load settings from database, using defaults")
		return defaults, nil
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			s.log.WithError(err).Warn("Could not read settings row, using defaults")
			return defaults, nil
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		s.log.WithError(err).Warn("Could not load settings from database, using defaults")
		return defaults, nil
	}
	return models.MergeSettings(defaults, values), nil
}

// Save upserts every settings key in one transaction.
func (s *PostgresStore) Save(ctx context.Context, settings models.Settings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	values := settings.ToMap()
	for _, key := range models.SettingsKeys {
		_, err := tx.Exec(ctx, `
			INSERT INTO settings (key, value, description, updated_at, updated_by)
			VALUES ($1, $2, $3, CURRENT_TIMESTAMP, $4)
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at,
				updated_by = EXCLUDED.updated_by
		`, key, values[key], fmt.Sprintf("Generator setting %s", key), s.actor)
		if err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// RunRecorder writes generation attempts to the generation_runs table.
type RunRecorder struct {
	pool *pgxpool.Pool
}

// NewRunRecorder returns a recorder over pool.
func NewRunRecorder(pool *pgxpool.Pool) *RunRecorder {
	return &RunRecorder{pool: pool}
}

// RecordRun adds an entry to the generation_runs table
func (r *RunRecorder) RecordRun(ctx context.Context, run models.GenerationRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO generation_runs (id, timestamp, course, tma_ref, output_dir, question_count, success, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Timestamp, run.Course, run.TMARef, run.OutputDir, run.Questions, run.Success, run.Message)
	if err != nil {
		return fmt.Errorf("failed to record generation run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the latest generation attempts, newest first.
func (r *RunRecorder) RecentRuns(ctx context.Context, limit int) ([]models.GenerationRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, timestamp, course, tma_ref, output_dir, question_count, success, message
		FROM generation_runs ORDER BY timestamp DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GenerationRun, error) {
		var run models.GenerationRun
		err := row.Scan(&run.ID, &run.Timestamp, &run.Course, &run.TMARef, &run.OutputDir, &run.Questions, &run.Success, &run.Message)
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation runs: %w", err)
	}
	return runs, nil
}
