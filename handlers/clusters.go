package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-outbreak/engine"
	"go-outbreak/types"
)

func (h *Handlers) DetectOutbreaks(c *gin.Context) {
	result, err := h.Engine.DetectOutbreaks(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to detect outbreaks", err)
		return
	}
	h.Logger.Info("Detection requested over HTTP",
		zap.Int64("generation", result.Generation),
		zap.Int("clusters", result.ClustersFound),
	)
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetClusters(c *gin.Context) {
	clusters := h.Engine.ActiveClusters()
	if clusters == nil {
		clusters = []types.OutbreakCluster{}
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": h.Engine.CurrentGeneration(),
		"count":      len(clusters),
		"clusters":   clusters,
	})
}

func (h *Handlers) GetMapClusters(c *gin.Context) {
	region, err := parseRegion(c)
	if err != nil {
		h.respondError(c, "Invalid region", err)
		return
	}
	radius, err := queryFloat(c, "radiusKm", 0)
	if err != nil {
		h.respondError(c, "Invalid radius", err)
		return
	}
	minPoints, err := queryInt(c, "minPoints", 0)
	if err != nil {
		h.respondError(c, "Invalid minPoints", err)
		return
	}

	clusters, err := h.Engine.MapClusters(c.Request.Context(), engine.MapQuery{
		Region:    region,
		Disease:   c.Query("disease"),
		RadiusKM:  radius,
		MinPoints: minPoints,
	})
	if err != nil {
		h.respondError(c, "Failed to cluster reports", err)
		return
	}
	if clusters == nil {
		clusters = []types.OutbreakCluster{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(clusters),
		"clusters": clusters,
	})
}
