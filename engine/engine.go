// Package engine runs the outbreak pipeline: load recent reports, cluster,
// score, label, raise alerts, swap the active generation and publish. It also
// serves forecasts and anomaly scans over the current generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-outbreak/alerts"
	"go-outbreak/anomaly"
	"go-outbreak/detection"
	"go-outbreak/events"
	"go-outbreak/forecast"
	"go-outbreak/scoring"
	"go-outbreak/summarization"
	"go-outbreak/types"
)

const DefaultLookback = 14 * 24 * time.Hour

// Store is the Report Store as the engine sees it.
type Store interface {
	ListRecentReports(ctx context.Context, since time.Time, region *types.BoundingBox, disease string) ([]types.SymptomReport, error)
	// ReplaceActiveClusters deactivates the previous generation and activates this one in a
	// single transaction. It returns types.ErrStaleGeneration when a newer generation is active.
	ReplaceActiveClusters(ctx context.Context, generation int64, clusters []types.OutbreakCluster) error
	LoadActiveClusters(ctx context.Context) (int64, []types.OutbreakCluster, error)
	// SaveAlerts creates the alerts that do not exist yet and returns only those.
	SaveAlerts(ctx context.Context, alerts []types.HealthAlert) ([]types.HealthAlert, error)
	ListAlerts(ctx context.Context, now time.Time, includeAcknowledged bool) ([]types.HealthAlert, error)
}

type Forecaster interface {
	Get(ctx context.Context, region types.BoundingBox, horizonDays int, disease string) (types.Prediction, error)
}

// Publisher hands results to the transport layer.
type Publisher interface {
	PublishGeneration(ctx context.Context, result types.DetectionResult) error
	PublishAlert(ctx context.Context, alert types.HealthAlert) error
}

type Labeler interface {
	Label(ctx context.Context, p types.Point) string
}

type Narrator interface {
	Narrate(ctx context.Context, alerts []summarization.AlertContext) map[string]string
}

type Config struct {
	Clustering  detection.Options
	Lookback    time.Duration
	Anomaly     anomaly.Options
	AlertExpiry time.Duration
}

func DefaultConfig() Config {
	return Config{
		Clustering:  detection.DefaultOptions(),
		Lookback:    DefaultLookback,
		Anomaly:     anomaly.DefaultOptions(),
		AlertExpiry: alerts.DefaultExpiry,
	}
}

// Deps are the collaborators. Store and Forecasts are required, the rest may be nil.
type Deps struct {
	Store     Store
	Forecasts Forecaster
	Publisher Publisher
	Labeler   Labeler
	Narrator  Narrator
}

type PredictionRequest struct {
	Region      types.BoundingBox
	HorizonDays int
	Disease     string
	// Jitter is the presentation noise amplitude in [0, 1]; zero keeps the forecast exact.
	Jitter float64
}

type MapQuery struct {
	Region    *types.BoundingBox
	Disease   string
	RadiusKM  float64
	MinPoints int
}

type Engine struct {
	cfg    Config
	deps   Deps
	arena  arena
	logger *zap.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(cfg Config, deps Deps, logger *zap.Logger) (*Engine, error) {
	if deps.Store == nil || deps.Forecasts == nil {
		return nil, errors.New("engine requires a store and a forecaster")
	}
	if err := cfg.Clustering.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Anomaly.Validate(); err != nil {
		return nil, err
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Warm loads the store's active generation into memory so reads work before the first run.
func (e *Engine) Warm(ctx context.Context) error {
	gen, clusters, err := e.deps.Store.LoadActiveClusters(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active clusters: %w", err)
	}
	if gen == 0 {
		e.logger.Info("No active cluster generation in store")
		return nil
	}
	e.arena.publish(&Generation{ID: gen, Clusters: clusters, CreatedAt: e.now().UTC()})
	e.logger.Info("Loaded active cluster generation", zap.Int64("generation", gen), zap.Int("clusters", len(clusters)))
	return nil
}

// DetectOutbreaks rebuilds the active cluster set from the recent reports. Clusters
// that fail to score are skipped and reported as warnings. Nothing becomes visible
// to readers unless the store accepted the new generation.
func (e *Engine) DetectOutbreaks(ctx context.Context) (types.DetectionResult, error) {
	started := e.now()
	now := started.UTC()

	reports, err := e.deps.Store.ListRecentReports(ctx, now.Add(-e.cfg.Lookback), nil, "")
	if err != nil {
		return types.DetectionResult{}, fmt.Errorf("failed to load recent reports: %w", err)
	}

	var warnings []string
	reports = e.usableReports(reports, &warnings)

	groups, err := detection.Cluster(reports, e.cfg.Clustering)
	if err != nil {
		return types.DetectionResult{}, err
	}

	gen := e.arena.next(now)
	clusters, members := e.finalizeAll(ctx, groups, gen, now, &warnings)

	if err := e.deps.Store.ReplaceActiveClusters(ctx, gen, clusters); err != nil {
		if errors.Is(err, types.ErrStaleGeneration) {
			e.logger.Warn("Newer generation already active, discarding this run", zap.Int64("generation", gen))
			warnings = append(warnings, "a newer generation became active during this run; results were not activated")
			return summarize(gen, clusters, 0, warnings), nil
		}
		return types.DetectionResult{}, fmt.Errorf("failed to replace active clusters: %w", err)
	}
	if !e.arena.publish(&Generation{ID: gen, Clusters: clusters, CreatedAt: now}) {
		e.logger.Debug("In-memory generation already newer", zap.Int64("generation", gen))
	}

	created := e.raiseAlerts(ctx, clusters, members, now, &warnings)
	result := summarize(gen, clusters, len(created), warnings)

	for _, a := range created {
		if err := e.deps.Publisher.PublishAlert(ctx, a); err != nil {
			e.logger.Warn("Failed to publish alert", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
	if err := e.deps.Publisher.PublishGeneration(ctx, result); err != nil {
		e.logger.Warn("Failed to publish generation", zap.Int64("generation", gen), zap.Error(err))
	}

	e.logger.Info("Outbreak detection finished",
		zap.Int64("generation", gen),
		zap.Int("reports", len(reports)),
		zap.Int("clusters", result.ClustersFound),
		zap.Int("critical", result.CriticalCount),
		zap.Int("alerts_created", result.AlertsCreated),
		zap.Duration("took", e.now().Sub(started)),
	)
	return result, nil
}

// ActiveClusters returns the current generation, or an empty list before the first run.
func (e *Engine) ActiveClusters() []types.OutbreakCluster {
	g := e.arena.load()
	if g == nil {
		return []types.OutbreakCluster{}
	}
	out := make([]types.OutbreakCluster, len(g.Clusters))
	copy(out, g.Clusters)
	return out
}

func (e *Engine) CurrentGeneration() int64 {
	if g := e.arena.load(); g != nil {
		return g.ID
	}
	return 0
}

func (e *Engine) GeneratePrediction(ctx context.Context, req PredictionRequest) (types.Prediction, error) {
	if req.Jitter < 0 || req.Jitter > 1 {
		return types.Prediction{}, &types.ValidationError{Field: "jitter", Reason: "must be within [0, 1]"}
	}
	p, err := e.deps.Forecasts.Get(ctx, req.Region, req.HorizonDays, req.Disease)
	if err != nil {
		return types.Prediction{}, err
	}
	if req.Jitter > 0 {
		e.rngMu.Lock()
		p = forecast.ApplyJitter(p, req.Jitter, e.rng)
		e.rngMu.Unlock()
	}
	return p, nil
}

// DetectAnomalies scans the active clusters whose centroid falls in region (all of them when
// region is nil). A zero threshold uses the configured one.
func (e *Engine) DetectAnomalies(ctx context.Context, region *types.BoundingBox, threshold float64) (types.AnomalyReport, error) {
	if region != nil {
		if err := region.Validate(); err != nil {
			return types.AnomalyReport{}, err
		}
	}
	opts := e.cfg.Anomaly
	if threshold != 0 {
		opts.Threshold = threshold
	}

	var scoped []types.OutbreakCluster
	for _, c := range e.ActiveClusters() {
		if region == nil || region.Contains(c.Centroid) {
			scoped = append(scoped, c)
		}
	}

	found, err := anomaly.Detect(scoped, opts, e.now().UTC())
	if err != nil {
		return types.AnomalyReport{}, err
	}
	return types.AnomalyReport{Anomalies: found, Summary: types.SummarizeAnomalies(found)}, nil
}

// MapClusters clusters recent reports on the fly with size-based radii for map rendering.
// The result is not persisted and does not touch the active generation.
func (e *Engine) MapClusters(ctx context.Context, q MapQuery) ([]types.OutbreakCluster, error) {
	if q.Region != nil {
		if err := q.Region.Validate(); err != nil {
			return nil, err
		}
	}
	opts := e.cfg.Clustering
	opts.RadiusStyle = detection.RadiusBySize
	if q.RadiusKM != 0 {
		opts.RadiusKM = q.RadiusKM
	}
	if q.MinPoints != 0 {
		opts.MinPoints = q.MinPoints
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	reports, err := e.deps.Store.ListRecentReports(ctx, now.Add(-e.cfg.Lookback), q.Region, q.Disease)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent reports: %w", err)
	}

	var warnings []string
	groups, err := detection.Cluster(e.usableReports(reports, &warnings), opts)
	if err != nil {
		return nil, err
	}
	clusters, _ := e.finalizeAll(ctx, groups, 0, now, &warnings)
	return clusters, nil
}

// Alerts lists unexpired alerts.
func (e *Engine) Alerts(ctx context.Context, includeAcknowledged bool) ([]types.HealthAlert, error) {
	return e.deps.Store.ListAlerts(ctx, e.now().UTC(), includeAcknowledged)
}

// usableReports drops reports the store should never have accepted and orders the rest
// by creation time then id, which fixes the clustering visit order.
func (e *Engine) usableReports(reports []types.SymptomReport, warnings *[]string) []types.SymptomReport {
	out := make([]types.SymptomReport, 0, len(reports))
	for _, r := range reports {
		err := types.ValidateSeverity(r.Severity)
		if err == nil {
			err = r.Location.Validate()
		}
		if err != nil {
			e.logger.Warn("Skipping invalid report", zap.String("report_id", r.ID), zap.Error(err))
			*warnings = append(*warnings, fmt.Sprintf("report %s skipped: %v", r.ID, err))
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) finalizeAll(ctx context.Context, groups []detection.Group, gen int64, now time.Time, warnings *[]string) ([]types.OutbreakCluster, map[string][]types.SymptomReport) {
	clusters := make([]types.OutbreakCluster, 0, len(groups))
	members := make(map[string][]types.SymptomReport, len(groups))
	for _, g := range groups {
		c, err := e.finalize(ctx, g, gen, now)
		if err != nil {
			e.logger.Error("Skipping cluster after computation failure", zap.String("cluster_id", g.Cluster.ID), zap.Error(err))
			*warnings = append(*warnings, fmt.Sprintf("cluster %s skipped: %v", g.Cluster.ID, err))
			continue
		}
		clusters = append(clusters, c)
		members[c.ID] = g.Members
	}
	return clusters, members
}

func (e *Engine) finalize(ctx context.Context, g detection.Group, gen int64, now time.Time) (c types.OutbreakCluster, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.ComputationError{Stage: "scoring", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	res, err := scoring.Score(g.Members, now)
	if err != nil {
		return types.OutbreakCluster{}, err
	}

	c = g.Cluster
	c.Generation = gen
	c.RiskScore = res.RiskScore
	c.Tier = res.Tier
	c.DetectedAt = now
	c.LocationLabel = e.label(ctx, c.Centroid)
	return c, nil
}

func (e *Engine) label(ctx context.Context, p types.Point) string {
	if e.deps.Labeler == nil {
		return types.FormatCoordinate(p)
	}
	return e.deps.Labeler.Label(ctx, p)
}

// raiseAlerts saves alerts for qualifying clusters and returns the ones that are new.
func (e *Engine) raiseAlerts(ctx context.Context, clusters []types.OutbreakCluster, members map[string][]types.SymptomReport, now time.Time, warnings *[]string) []types.HealthAlert {
	candidates := alerts.Generate(clusters, now, e.cfg.AlertExpiry)
	if len(candidates) == 0 {
		return nil
	}

	fresh := e.withoutExisting(ctx, candidates, now)
	if len(fresh) == 0 {
		return nil
	}
	e.narrate(ctx, fresh, clusters, members)

	created, err := e.deps.Store.SaveAlerts(ctx, fresh)
	if err != nil {
		e.logger.Error("Failed to save alerts", zap.Int("alerts", len(fresh)), zap.Error(err))
		*warnings = append(*warnings, fmt.Sprintf("alerts not saved: %v", err))
		return nil
	}
	return created
}

// withoutExisting skips alerts already on record so narratives are only requested once.
// The store still deduplicates on save.
func (e *Engine) withoutExisting(ctx context.Context, candidates []types.HealthAlert, now time.Time) []types.HealthAlert {
	existing, err := e.deps.Store.ListAlerts(ctx, now, true)
	if err != nil {
		e.logger.Warn("Failed to list existing alerts", zap.Error(err))
		return candidates
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}
	var out []types.HealthAlert
	for _, a := range candidates {
		if !known[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) narrate(ctx context.Context, fresh []types.HealthAlert, clusters []types.OutbreakCluster, members map[string][]types.SymptomReport) {
	if e.deps.Narrator == nil {
		return
	}
	symptoms := make(map[string][]string, len(clusters))
	for _, c := range clusters {
		symptoms[c.ID] = c.DominantSymptoms
	}

	inputs := make([]summarization.AlertContext, 0, len(fresh))
	for _, a := range fresh {
		var descriptions []string
		for _, r := range members[a.ClusterID] {
			descriptions = append(descriptions, r.Description)
		}
		inputs = append(inputs, summarization.AlertContext{
			AlertID:      a.ID,
			Title:        a.Title,
			Symptoms:     symptoms[a.ClusterID],
			Descriptions: descriptions,
		})
	}

	narratives := e.deps.Narrator.Narrate(ctx, inputs)
	for i := range fresh {
		if n, ok := narratives[fresh[i].ID]; ok {
			fresh[i].Description = fresh[i].Description + " " + n
		}
	}
}

func summarize(gen int64, clusters []types.OutbreakCluster, alertsCreated int, warnings []string) types.DetectionResult {
	result := types.DetectionResult{
		Generation:    gen,
		ClustersFound: len(clusters),
		AlertsCreated: alertsCreated,
		Clusters:      make([]types.OutbreakClusterSummary, 0, len(clusters)),
		Warnings:      warnings,
	}
	for _, c := range clusters {
		switch c.Tier {
		case types.TierCritical:
			result.CriticalCount++
		case types.TierConcerning:
			result.ConcerningCount++
		}
		result.Clusters = append(result.Clusters, c.Summary())
	}
	return result
}
