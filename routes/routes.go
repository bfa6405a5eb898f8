package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-outbreak/handlers"
)

// SetupRouter builds the gin engine. clientURL, when set, is the browser origin
// allowed to call the API.
func SetupRouter(h *handlers.Handlers, clientURL string) *gin.Engine {
	r := gin.Default()
	if clientURL != "" {
		r.Use(allowOrigin(clientURL))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Hello, welcome to Go Outbreak!",
		})
	})

	// api routes
	api := r.Group("/api/outbreak")
	{
		api.GET("/health", h.Health)
		api.POST("/reports", h.SubmitReport)
		api.POST("/detect", h.DetectOutbreaks)
		api.GET("/clusters", h.GetClusters)
		api.GET("/clusters/map", h.GetMapClusters)
		api.GET("/clusters/export", h.ExportClusters)
		api.GET("/predictions", h.GetPrediction)
		api.GET("/anomalies", h.GetAnomalies)
		api.GET("/alerts", h.GetAlerts)
	}

	return r
}

func allowOrigin(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
