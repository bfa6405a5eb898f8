package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NewPostgresDB opens and pings a PostgreSQL connection pool.
func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS symptom_reports (
		id            TEXT PRIMARY KEY,
		lat           DOUBLE PRECISION NOT NULL,
		lng           DOUBLE PRECISION NOT NULL,
		description   TEXT NOT NULL,
		symptoms      TEXT[] NOT NULL DEFAULT '{}',
		severity      SMALLINT NOT NULL CHECK (severity BETWEEN 1 AND 10),
		case_count    INTEGER NOT NULL DEFAULT 1,
		age_range     TEXT,
		recent_travel BOOLEAN,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symptom_reports_created_at ON symptom_reports (created_at)`,
	`CREATE TABLE IF NOT EXISTS outbreak_clusters (
		generation BIGINT NOT NULL,
		cluster_id TEXT NOT NULL,
		ordinal    INTEGER NOT NULL,
		is_active  BOOLEAN NOT NULL,
		data       JSONB NOT NULL,
		PRIMARY KEY (generation, cluster_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbreak_clusters_active ON outbreak_clusters (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS active_generation (
		id         BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
		generation BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO active_generation (id, generation) VALUES (TRUE, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS health_alerts (
		id                  TEXT PRIMARY KEY,
		cluster_id          TEXT NOT NULL,
		level               TEXT NOT NULL,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL,
		affected_regions    TEXT[] NOT NULL DEFAULT '{}',
		estimated_impact    TEXT NOT NULL,
		recommended_actions TEXT[] NOT NULL DEFAULT '{}',
		risk_score          DOUBLE PRECISION NOT NULL,
		acknowledged        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL,
		expires_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_alerts_expires_at ON health_alerts (expires_at)`,
}

// PostgresStore is the Report Store on PostgreSQL. The single-row active_generation
// table is locked for the duration of a generation swap.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Info("Database schema ready")
	return nil
}
