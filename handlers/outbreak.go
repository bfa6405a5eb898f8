package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-outbreak/engine"
	"go-outbreak/intake"
	"go-outbreak/types"
)

// OutbreakService is the engine surface the HTTP layer exposes.
type OutbreakService interface {
	DetectOutbreaks(ctx context.Context) (types.DetectionResult, error)
	ActiveClusters() []types.OutbreakCluster
	CurrentGeneration() int64
	GeneratePrediction(ctx context.Context, req engine.PredictionRequest) (types.Prediction, error)
	DetectAnomalies(ctx context.Context, region *types.BoundingBox, threshold float64) (types.AnomalyReport, error)
	MapClusters(ctx context.Context, q engine.MapQuery) ([]types.OutbreakCluster, error)
	Alerts(ctx context.Context, includeAcknowledged bool) ([]types.HealthAlert, error)
}

type ReportSubmitter interface {
	Submit(ctx context.Context, in intake.ReportInput) (types.SymptomReport, error)
}

type Handlers struct {
	Engine OutbreakService
	Intake ReportSubmitter
	// DefaultJitter applies to prediction requests that do not set one.
	DefaultJitter float64
	Logger        *zap.Logger
}

// respondError maps validation failures to 400 and everything else to 500.
func (h *Handlers) respondError(c *gin.Context, message string, err error) {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   message,
			"details": err.Error(),
		})
		return
	}
	h.Logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

var regionParams = []string{"minLat", "minLng", "maxLat", "maxLng"}

// parseRegion reads an optional bounding box. Either all four bounds are given or none.
func parseRegion(c *gin.Context) (*types.BoundingBox, error) {
	var vals [4]float64
	present := 0
	for i, name := range regionParams {
		raw, ok := c.GetQuery(name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &types.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		vals[i] = v
		present++
	}
	switch present {
	case 0:
		return nil, nil
	case len(regionParams):
	default:
		return nil, &types.ValidationError{Field: "region", Reason: "minLat, minLng, maxLat and maxLng must be given together"}
	}

	box := &types.BoundingBox{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	if err := box.Validate(); err != nil {
		return nil, err
	}
	return box, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &types.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return v, nil
}

func queryFloat(c *gin.Context, name string, def float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &types.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return v, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &types.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a boolean", raw)}
	}
	return v, nil
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"generation": h.Engine.CurrentGeneration(),
	})
}
