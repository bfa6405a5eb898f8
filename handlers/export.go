package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"go-outbreak/types"
)

const clusterSheet = "Active Clusters"

var clusterExportHeader = []string{
	"Cluster ID",
	"Location",
	"Latitude",
	"Longitude",
	"Members",
	"Dominant Symptoms",
	"Avg Severity",
	"Risk Score",
	"Tier",
	"Growth Rate",
	"First Detected",
	"Detected At",
}

var clusterColumnWidths = []float64{38, 28, 12, 12, 10, 36, 12, 12, 12, 12, 22, 22}

// ExportClusters returns the active generation as an XLSX workbook.
func (h *Handlers) ExportClusters(c *gin.Context) {
	gen := h.Engine.CurrentGeneration()
	data, err := GenerateClusterExport(h.Engine.ActiveClusters())
	if err != nil {
		h.respondError(c, "Failed to export clusters", err)
		return
	}

	h.Logger.Info("Exported active clusters", zap.Int64("generation", gen), zap.Int("bytes", len(data)))
	filename := fmt.Sprintf("outbreak_clusters_%d.xlsx", gen)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GenerateClusterExport writes one row per cluster under a styled header row.
func GenerateClusterExport(clusters []types.OutbreakCluster) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(clusterSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE9E7"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range clusterExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(clusterSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(clusterSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(clusterSheet, name, name, clusterColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, cl := range clusters {
		row := []interface{}{
			cl.ID,
			cl.LocationLabel,
			cl.Centroid.Lat,
			cl.Centroid.Lng,
			cl.MemberCount,
			strings.Join(cl.DominantSymptoms, ", "),
			cl.AvgSeverity,
			cl.RiskScore,
			string(cl.Tier),
			cl.GrowthRate,
			cl.FirstDetectedAt.UTC().Format(time.RFC3339),
			cl.DetectedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(clusterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
