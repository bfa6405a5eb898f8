package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"go-outbreak/types"
)

const uniqueViolation = "23505"

const reportColumns = `id, lat, lng, description, symptoms, severity, case_count, age_range, recent_travel, created_at`

func (s *PostgresStore) SaveReport(ctx context.Context, r types.SymptomReport) error {
	symptoms := r.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	query := `INSERT INTO symptom_reports (` + reportColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Location.Lat,
		r.Location.Lng,
		r.Description,
		pq.Array(symptoms),
		r.Severity,
		r.Cases(),
		sql.NullString{String: r.AgeRange, Valid: r.AgeRange != ""},
		r.RecentTravel,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &types.ValidationError{Field: "id", Reason: fmt.Sprintf("report %s already exists", r.ID)}
		}
		return fmt.Errorf("failed to insert report %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListRecentReports(ctx context.Context, since time.Time, region *types.BoundingBox, disease string) ([]types.SymptomReport, error) {
	query, args := withReportFilters(`SELECT `+reportColumns+` FROM symptom_reports WHERE created_at >= $1`, []interface{}{since.UTC()}, region, disease)
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []types.SymptomReport
	for rows.Next() {
		var (
			r            types.SymptomReport
			symptoms     pq.StringArray
			ageRange     sql.NullString
			recentTravel sql.NullBool
		)
		if err := rows.Scan(&r.ID, &r.Location.Lat, &r.Location.Lng, &r.Description, &symptoms,
			&r.Severity, &r.CaseCount, &ageRange, &recentTravel, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Symptoms = []string(symptoms)
		r.AgeRange = ageRange.String
		if recentTravel.Valid {
			v := recentTravel.Bool
			r.RecentTravel = &v
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// ListDailyAggregates groups in SQL by UTC calendar day.
func (s *PostgresStore) ListDailyAggregates(ctx context.Context, region *types.BoundingBox, disease string, daysBack int) ([]types.DailyAggregate, error) {
	since := StartOfDayUTC(s.now()).AddDate(0, 0, -daysBack)
	query, args := withReportFilters(`SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		SUM(case_count), AVG(severity)::float8, COUNT(*)
		FROM symptom_reports WHERE created_at >= $1`, []interface{}{since}, region, disease)
	query += ` GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := []types.DailyAggregate{}
	for rows.Next() {
		var (
			day   time.Time
			cases int64
			a     types.DailyAggregate
		)
		if err := rows.Scan(&day, &cases, &a.AvgSeverity, &a.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		a.Date = StartOfDayUTC(day)
		a.TotalCases = int(cases)
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily aggregates: %w", err)
	}
	return aggregates, nil
}

// withReportFilters appends the optional bounding box and symptom predicates.
func withReportFilters(query string, args []interface{}, region *types.BoundingBox, disease string) (string, []interface{}) {
	if region != nil {
		n := len(args)
		query += fmt.Sprintf(" AND lat BETWEEN $%d AND $%d AND lng BETWEEN $%d AND $%d", n+1, n+2, n+3, n+4)
		args = append(args, region.MinLat, region.MaxLat, region.MinLng, region.MaxLng)
	}
	if d := strings.ToLower(strings.TrimSpace(disease)); d != "" {
		query += fmt.Sprintf(" AND $%d = ANY(symptoms)", len(args)+1)
		args = append(args, d)
	}
	return query, args
}
