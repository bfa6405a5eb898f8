package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-outbreak/engine"
	"go-outbreak/types"
)

const defaultHorizonDays = 7

func (h *Handlers) GetPrediction(c *gin.Context) {
	region, err := parseRegion(c)
	if err != nil {
		h.respondError(c, "Invalid region", err)
		return
	}
	if region == nil {
		world := types.WorldBounds
		region = &world
	}
	horizon, err := queryInt(c, "horizon", defaultHorizonDays)
	if err != nil {
		h.respondError(c, "Invalid horizon", err)
		return
	}
	jitter, err := queryFloat(c, "jitter", h.DefaultJitter)
	if err != nil {
		h.respondError(c, "Invalid jitter", err)
		return
	}

	prediction, err := h.Engine.GeneratePrediction(c.Request.Context(), engine.PredictionRequest{
		Region:      *region,
		HorizonDays: horizon,
		Disease:     c.Query("disease"),
		Jitter:      jitter,
	})
	if err != nil {
		h.respondError(c, "Failed to generate prediction", err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (h *Handlers) GetAnomalies(c *gin.Context) {
	region, err := parseRegion(c)
	if err != nil {
		h.respondError(c, "Invalid region", err)
		return
	}
	threshold, err := queryFloat(c, "threshold", 0)
	if err != nil {
		h.respondError(c, "Invalid threshold", err)
		return
	}

	report, err := h.Engine.DetectAnomalies(c.Request.Context(), region, threshold)
	if err != nil {
		h.respondError(c, "Failed to detect anomalies", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) GetAlerts(c *gin.Context) {
	includeAck, err := queryBool(c, "includeAcknowledged")
	if err != nil {
		h.respondError(c, "Invalid includeAcknowledged", err)
		return
	}

	alerts, err := h.Engine.Alerts(c.Request.Context(), includeAck)
	if err != nil {
		h.respondError(c, "Failed to retrieve alerts", err)
		return
	}
	if alerts == nil {
		alerts = []types.HealthAlert{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}
