package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-outbreak/types"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresStore(db, zap.NewNop())
	store.now = func() time.Time { return fixedNow }

	return db, mock, store
}

func TestPostgresSaveReport_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	travel := true
	r := types.SymptomReport{
		ID:           "r1",
		Location:     types.Point{Lat: 13.7563, Lng: 100.5018},
		Description:  "fever and rash since yesterday",
		Symptoms:     []string{"fever", "rash"},
		Severity:     7,
		CreatedAt:    fixedNow,
		RecentTravel: &travel,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO symptom_reports`)).
		WithArgs("r1", 13.7563, 100.5018, "fever and rash since yesterday", pq.Array([]string{"fever", "rash"}),
			7, 1, nil, true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveReport(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveReport_Duplicate(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO symptom_reports`)).
		WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key value"})

	err := store.SaveReport(context.Background(), types.SymptomReport{ID: "r1", Severity: 3, CreatedAt: fixedNow})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRecentReports_WithFilters(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	since := fixedNow.Add(-14 * 24 * time.Hour)
	region := &types.BoundingBox{MinLat: 13, MaxLat: 14, MinLng: 100, MaxLng: 101}

	rows := sqlmock.NewRows([]string{"id", "lat", "lng", "description", "symptoms", "severity", "case_count", "age_range", "recent_travel", "created_at"}).
		AddRow("r1", 13.75, 100.5, "fever", "{fever,cough}", 8, 1, "18-30", nil, fixedNow.Add(-time.Hour)).
		AddRow("r2", 13.76, 100.51, "fever again", "{fever}", 6, 4, nil, false, fixedNow)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM symptom_reports WHERE created_at >= $1 AND lat BETWEEN $2 AND $3 AND lng BETWEEN $4 AND $5 AND $6 = ANY(symptoms) ORDER BY created_at, id`)).
		WithArgs(since, 13.0, 14.0, 100.0, 101.0, "fever").
		WillReturnRows(rows)

	reports, err := store.ListRecentReports(context.Background(), since, region, " Fever ")
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "r1", reports[0].ID)
	assert.Equal(t, []string{"fever", "cough"}, reports[0].Symptoms)
	assert.Equal(t, "18-30", reports[0].AgeRange)
	assert.Nil(t, reports[0].RecentTravel)
	assert.Equal(t, 8, reports[0].Severity)

	assert.Equal(t, 4, reports[1].Cases())
	require.NotNil(t, reports[1].RecentTravel)
	assert.False(t, *reports[1].RecentTravel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListDailyAggregates(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	day1 := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	rows := sqlmock.NewRows([]string{"day", "sum", "avg", "count"}).
		AddRow(day1, int64(7), 5.5, 2).
		AddRow(day2, int64(3), 9.0, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY day ORDER BY day`)).
		WithArgs(time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(rows)

	got, err := store.ListDailyAggregates(context.Background(), nil, "", 90)
	require.NoError(t, err)
	assert.Equal(t, []types.DailyAggregate{
		{Date: day1, TotalCases: 7, AvgSeverity: 5.5, Count: 2},
		{Date: day2, TotalCases: 3, AvgSeverity: 9, Count: 1},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceActiveClusters_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	clusters := []types.OutbreakCluster{{ID: "c1", Generation: 10}, {ID: "c2", Generation: 10}}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT generation FROM active_generation WHERE id FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbreak_clusters SET is_active = FALSE WHERE is_active`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbreak_clusters`)).
		WithArgs(int64(10), "c1", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbreak_clusters`)).
		WithArgs(int64(10), "c2", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO active_generation`)).
		WithArgs(int64(10), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceActiveClusters(context.Background(), 10, clusters))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceActiveClusters_Stale(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT generation FROM active_generation`)).
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(int64(12)))
	mock.ExpectRollback()

	err := store.ReplaceActiveClusters(context.Background(), 10, nil)
	assert.ErrorIs(t, err, types.ErrStaleGeneration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceActiveClusters_InsertFailureRollsBack(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT generation FROM active_generation`)).
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbreak_clusters`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbreak_clusters`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.ReplaceActiveClusters(context.Background(), 1, []types.OutbreakCluster{{ID: "c1"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrStaleGeneration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadActiveClusters(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	c1, err := json.Marshal(types.OutbreakCluster{ID: "c1", Generation: 10, MemberCount: 4, Tier: types.TierCritical})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT generation FROM active_generation WHERE id`)).
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM outbreak_clusters WHERE generation = $1 AND is_active ORDER BY ordinal`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(c1))

	gen, clusters, err := store.LoadActiveClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), gen)
	require.Len(t, clusters, 1)
	assert.Equal(t, "c1", clusters[0].ID)
	assert.Equal(t, types.TierCritical, clusters[0].Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadActiveClusters_NoneYet(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT generation FROM active_generation`)).
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(int64(0)))

	gen, clusters, err := store.LoadActiveClusters(context.Background())
	require.NoError(t, err)
	assert.Zero(t, gen)
	assert.Empty(t, clusters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveAlerts_ReturnsOnlyNew(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	alerts := []types.HealthAlert{
		{ID: "a1", ClusterID: "c1", Level: types.AlertCritical, CreatedAt: fixedNow, ExpiresAt: fixedNow.Add(72 * time.Hour)},
		{ID: "a2", ClusterID: "c2", Level: types.AlertHigh, CreatedAt: fixedNow, ExpiresAt: fixedNow.Add(72 * time.Hour)},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO health_alerts`)).
		WithArgs("a1", "c1", "critical", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow, fixedNow.Add(72*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "a1", created[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAlerts_ExcludesAcknowledged(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "cluster_id", "level", "title", "description", "affected_regions", "estimated_impact", "recommended_actions", "risk_score", "acknowledged", "created_at", "expires_at"}).
		AddRow("a1", "c1", "critical", "Critical outbreak risk near Bangkok", "desc", "{Bangkok}", "impact", `{"Deploy field investigation team","Notify public health authorities"}`, 91.5, false, fixedNow, fixedNow.Add(72*time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM health_alerts WHERE expires_at > $1 AND NOT acknowledged ORDER BY created_at DESC, id`)).
		WithArgs(fixedNow).
		WillReturnRows(rows)

	alerts, err := store.ListAlerts(context.Background(), fixedNow, false)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertCritical, alerts[0].Level)
	assert.Equal(t, []string{"Bangkok"}, alerts[0].AffectedRegions)
	assert.Equal(t, []string{"Deploy field investigation team", "Notify public health authorities"}, alerts[0].RecommendedActions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	for range schema {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
