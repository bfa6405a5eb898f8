package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"go-outbreak/engine"
	"go-outbreak/intake"
	"go-outbreak/types"
)

type fakeEngine struct {
	clusters   []types.OutbreakCluster
	generation int64
	detectErr  error

	lastPrediction engine.PredictionRequest
	lastMap        engine.MapQuery
	lastRegion     *types.BoundingBox
	lastThreshold  float64
	lastIncludeAck bool
}

func (f *fakeEngine) DetectOutbreaks(ctx context.Context) (types.DetectionResult, error) {
	if f.detectErr != nil {
		return types.DetectionResult{}, f.detectErr
	}
	return types.DetectionResult{Generation: f.generation, ClustersFound: len(f.clusters)}, nil
}

func (f *fakeEngine) ActiveClusters() []types.OutbreakCluster { return f.clusters }
func (f *fakeEngine) CurrentGeneration() int64                 { return f.generation }

func (f *fakeEngine) GeneratePrediction(ctx context.Context, req engine.PredictionRequest) (types.Prediction, error) {
	f.lastPrediction = req
	if req.HorizonDays > 90 {
		return types.Prediction{}, &types.ValidationError{Field: "horizonDays", Reason: "too far"}
	}
	return types.Prediction{Region: req.Region, HorizonDays: req.HorizonDays, Confidence: 0.5}, nil
}

func (f *fakeEngine) DetectAnomalies(ctx context.Context, region *types.BoundingBox, threshold float64) (types.AnomalyReport, error) {
	f.lastRegion = region
	f.lastThreshold = threshold
	return types.AnomalyReport{Anomalies: []types.Anomaly{}}, nil
}

func (f *fakeEngine) MapClusters(ctx context.Context, q engine.MapQuery) ([]types.OutbreakCluster, error) {
	f.lastMap = q
	return nil, nil
}

func (f *fakeEngine) Alerts(ctx context.Context, includeAcknowledged bool) ([]types.HealthAlert, error) {
	f.lastIncludeAck = includeAcknowledged
	return []types.HealthAlert{{ID: "a-1", Level: types.AlertCritical}}, nil
}

type fakeIntake struct {
	err error
}

func (f fakeIntake) Submit(ctx context.Context, in intake.ReportInput) (types.SymptomReport, error) {
	if f.err != nil {
		return types.SymptomReport{}, f.err
	}
	if err := intake.Validate(in); err != nil {
		return types.SymptomReport{}, err
	}
	return types.SymptomReport{ID: "r-1", Severity: in.Severity, Description: in.Description}, nil
}

func setupRouter(eng *fakeEngine, in ReportSubmitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handlers{Engine: eng, Intake: in, DefaultJitter: 0.1, Logger: zap.NewNop()}
	r := gin.New()
	api := r.Group("/api/outbreak")
	api.GET("/health", h.Health)
	api.POST("/reports", h.SubmitReport)
	api.POST("/detect", h.DetectOutbreaks)
	api.GET("/clusters", h.GetClusters)
	api.GET("/clusters/map", h.GetMapClusters)
	api.GET("/clusters/export", h.ExportClusters)
	api.GET("/predictions", h.GetPrediction)
	api.GET("/anomalies", h.GetAnomalies)
	api.GET("/alerts", h.GetAlerts)
	return r
}

func do(r *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleCluster() types.OutbreakCluster {
	return types.OutbreakCluster{
		ID:               "c-1",
		Centroid:         types.Point{Lat: 13.7563, Lng: 100.5018},
		MemberCount:      12,
		DominantSymptoms: []string{"fever", "rash"},
		AvgSeverity:      9,
		Tier:             types.TierCritical,
		RiskScore:        88.5,
		LocationLabel:    "Bangkok, Thailand",
		FirstDetectedAt:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DetectedAt:       time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubmitReport(t *testing.T) {
	r := setupRouter(&fakeEngine{}, fakeIntake{})
	body := []byte(`{"lat":13.75,"lng":100.5,"description":"fever","severity":6}`)

	w := do(r, http.MethodPost, "/api/outbreak/reports", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "r-1", decode(t, w)["id"])
}

func TestSubmitReport_Invalid(t *testing.T) {
	r := setupRouter(&fakeEngine{}, fakeIntake{})

	w := do(r, http.MethodPost, "/api/outbreak/reports", []byte(`{"lat":13.75,"lng":100.5,"description":"fever","severity":11}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	out := decode(t, w)
	assert.Equal(t, "Failed to submit report", out["error"])
	assert.Contains(t, out["details"], "severity")

	w = do(r, http.MethodPost, "/api/outbreak/reports", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitReport_StoreFailure(t *testing.T) {
	r := setupRouter(&fakeEngine{}, fakeIntake{err: errors.New("firestore unavailable")})
	w := do(r, http.MethodPost, "/api/outbreak/reports", []byte(`{"lat":1,"lng":1,"description":"x","severity":3}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDetectOutbreaks(t *testing.T) {
	eng := &fakeEngine{generation: 7, clusters: []types.OutbreakCluster{sampleCluster()}}
	r := setupRouter(eng, fakeIntake{})

	w := do(r, http.MethodPost, "/api/outbreak/detect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, float64(7), out["generation"])
	assert.Equal(t, float64(1), out["clustersFound"])

	eng.detectErr = errors.New("store down")
	w = do(r, http.MethodPost, "/api/outbreak/detect", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetClusters_EmptyIsArray(t *testing.T) {
	r := setupRouter(&fakeEngine{}, fakeIntake{})
	w := do(r, http.MethodGet, "/api/outbreak/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"generation":0,"count":0,"clusters":[]}`, w.Body.String())
}

func TestGetMapClusters_Query(t *testing.T) {
	eng := &fakeEngine{}
	r := setupRouter(eng, fakeIntake{})

	w := do(r, http.MethodGet, "/api/outbreak/clusters/map?radiusKm=25&minPoints=2&minLat=10&minLng=100&maxLat=15&maxLng=105&disease=fever", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25.0, eng.lastMap.RadiusKM)
	assert.Equal(t, 2, eng.lastMap.MinPoints)
	assert.Equal(t, "fever", eng.lastMap.Disease)
	require.NotNil(t, eng.lastMap.Region)
	assert.Equal(t, types.BoundingBox{MinLat: 10, MinLng: 100, MaxLat: 15, MaxLng: 105}, *eng.lastMap.Region)

	w = do(r, http.MethodGet, "/api/outbreak/clusters/map?minPoints=two", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegion_AllOrNothing(t *testing.T) {
	eng := &fakeEngine{}
	r := setupRouter(eng, fakeIntake{})

	w := do(r, http.MethodGet, "/api/outbreak/anomalies?minLat=10&minLng=100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"], "region")

	w = do(r, http.MethodGet, "/api/outbreak/anomalies?minLat=20&minLng=100&maxLat=15&maxLng=105", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/outbreak/anomalies?minLat=abc&minLng=100&maxLat=15&maxLng=105", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/outbreak/anomalies?threshold=2.5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, eng.lastRegion)
	assert.Equal(t, 2.5, eng.lastThreshold)
}

func TestGetPrediction(t *testing.T) {
	eng := &fakeEngine{}
	r := setupRouter(eng, fakeIntake{})

	w := do(r, http.MethodGet, "/api/outbreak/predictions?minLat=10&minLng=100&maxLat=15&maxLng=105&horizon=14&disease=dengue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 14, eng.lastPrediction.HorizonDays)
	assert.Equal(t, "dengue", eng.lastPrediction.Disease)
	assert.Equal(t, 0.1, eng.lastPrediction.Jitter)

	w = do(r, http.MethodGet, "/api/outbreak/predictions?jitter=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.WorldBounds, eng.lastPrediction.Region)
	assert.Equal(t, defaultHorizonDays, eng.lastPrediction.HorizonDays)
	assert.Equal(t, 0.0, eng.lastPrediction.Jitter)

	w = do(r, http.MethodGet, "/api/outbreak/predictions?horizon=120", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAlerts(t *testing.T) {
	eng := &fakeEngine{}
	r := setupRouter(eng, fakeIntake{})

	w := do(r, http.MethodGet, "/api/outbreak/alerts?includeAcknowledged=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, eng.lastIncludeAck)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(r, http.MethodGet, "/api/outbreak/alerts?includeAcknowledged=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := setupRouter(&fakeEngine{generation: 3}, fakeIntake{})
	w := do(r, http.MethodGet, "/api/outbreak/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","generation":3}`, w.Body.String())
}

func TestExportClusters(t *testing.T) {
	r := setupRouter(&fakeEngine{generation: 9, clusters: []types.OutbreakCluster{sampleCluster()}}, fakeIntake{})

	w := do(r, http.MethodGet, "/api/outbreak/clusters/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "outbreak_clusters_9.xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{clusterSheet}, f.GetSheetList())
	rows, err := f.GetRows(clusterSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, clusterExportHeader, rows[0])
	assert.Equal(t, "c-1", rows[1][0])
	assert.Equal(t, "Bangkok, Thailand", rows[1][1])
	assert.Equal(t, "fever, rash", rows[1][5])
	assert.Equal(t, "critical", rows[1][8])
}

func TestGenerateClusterExport_Empty(t *testing.T) {
	data, err := GenerateClusterExport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(clusterSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
