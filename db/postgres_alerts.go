package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"go-outbreak/types"
)

const alertColumns = `id, cluster_id, level, title, description, affected_regions, estimated_impact, recommended_actions, risk_score, acknowledged, created_at, expires_at`

// SaveAlerts inserts alerts whose id is new. Existing rows, and their acknowledged flag, are untouched.
func (s *PostgresStore) SaveAlerts(ctx context.Context, alerts []types.HealthAlert) ([]types.HealthAlert, error) {
	query := `INSERT INTO health_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	var created []types.HealthAlert
	for _, a := range alerts {
		res, err := s.db.ExecContext(ctx, query,
			a.ID, a.ClusterID, string(a.Level), a.Title, a.Description,
			pq.Array(a.AffectedRegions), a.EstimatedImpact, pq.Array(a.RecommendedActions),
			a.RiskScore, a.CreatedAt.UTC(), a.ExpiresAt.UTC(),
		)
		if err != nil {
			return created, fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("failed to read insert result for alert %s: %w", a.ID, err)
		}
		if n == 1 {
			created = append(created, a)
		}
	}
	return created, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, now time.Time, includeAcknowledged bool) ([]types.HealthAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM health_alerts WHERE expires_at > $1`
	if !includeAcknowledged {
		query += ` AND NOT acknowledged`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []types.HealthAlert{}
	for rows.Next() {
		var (
			a       types.HealthAlert
			level   string
			regions pq.StringArray
			actions pq.StringArray
		)
		if err := rows.Scan(&a.ID, &a.ClusterID, &level, &a.Title, &a.Description, &regions,
			&a.EstimatedImpact, &actions, &a.RiskScore, &a.Acknowledged, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Level = types.AlertLevel(level)
		a.AffectedRegions = []string(regions)
		a.RecommendedActions = []string(actions)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
