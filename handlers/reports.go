package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-outbreak/intake"
	"go-outbreak/types"
)

func (h *Handlers) SubmitReport(c *gin.Context) {
	var in intake.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, "Invalid report body", &types.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	report, err := h.Intake.Submit(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "Failed to submit report", err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
