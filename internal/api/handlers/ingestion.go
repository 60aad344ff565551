package handlers

import (
	"net/http"

	"finwatch/internal/ingestion"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// IngestionHandler exposes the pipeline's run reports and a manual
// re-run trigger
type IngestionHandler struct {
	pipeline   *ingestion.Pipeline
	devicePath string
	eventPath  string
	logger     *pterm.Logger
}

// NewIngestionHandler creates a new ingestion handler
func NewIngestionHandler(pipeline *ingestion.Pipeline, devicePath, eventPath string, logger *pterm.Logger) *IngestionHandler {
	return &IngestionHandler{
		pipeline:   pipeline,
		devicePath: devicePath,
		eventPath:  eventPath,
		logger:     logger,
	}
}

// GetReports returns the reports of the most recent ingestion run
func (h *IngestionHandler) GetReports(c *gin.Context) {
	reports := h.pipeline.LastReports()
	if reports == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []*ingestion.Report{}, "message": "no ingestion run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// TriggerRun runs the pipeline synchronously and returns the reports.
// Re-running is safe: device upserts are idempotent by hostname.
func (h *IngestionHandler) TriggerRun(c *gin.Context) {
	h.logger.Info("Manual ingestion run triggered via API")

	reports := h.pipeline.Run(c.Request.Context(), h.devicePath, h.eventPath)
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
