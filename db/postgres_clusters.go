package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"go-outbreak/types"
)

// ReplaceActiveClusters locks the active_generation row, deactivates the current clusters,
// inserts the new generation and moves the pointer, all in one transaction.
func (s *PostgresStore) ReplaceActiveClusters(ctx context.Context, generation int64, clusters []types.OutbreakCluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT generation FROM active_generation WHERE id FOR UPDATE`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read active generation: %w", err)
	}
	if current >= generation {
		return types.ErrStaleGeneration
	}

	if _, err := tx.ExecContext(ctx, `UPDATE outbreak_clusters SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("failed to deactivate clusters: %w", err)
	}

	for i, c := range clusters {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode cluster %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbreak_clusters (generation, cluster_id, ordinal, is_active, data) VALUES ($1, $2, $3, TRUE, $4)`,
			generation, c.ID, i, data,
		); err != nil {
			return fmt.Errorf("failed to insert cluster %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO active_generation (id, generation, updated_at) VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET generation = EXCLUDED.generation, updated_at = EXCLUDED.updated_at`,
		generation, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to move active generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster generation %d: %w", generation, err)
	}
	s.logger.Info("Activated cluster generation", zap.Int64("generation", generation), zap.Int("clusters", len(clusters)))
	return nil
}

func (s *PostgresStore) LoadActiveClusters(ctx context.Context) (int64, []types.OutbreakCluster, error) {
	var generation int64
	err := s.db.QueryRowContext(ctx, `SELECT generation FROM active_generation WHERE id`).Scan(&generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to read active generation: %w", err)
	}
	if generation == 0 {
		return 0, nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM outbreak_clusters WHERE generation = $1 AND is_active ORDER BY ordinal`, generation)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query active clusters: %w", err)
	}
	defer rows.Close()

	clusters := []types.OutbreakCluster{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return 0, nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		var c types.OutbreakCluster
		if err := json.Unmarshal(data, &c); err != nil {
			s.logger.Warn("Skipping undecodable cluster", zap.Int64("generation", generation), zap.Error(err))
			continue
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate clusters: %w", err)
	}
	return generation, clusters, nil
}
