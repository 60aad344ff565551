package handlers

import (
	"net/http"
	"strconv"

	"finwatch/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// DashboardHandler serves inventory and event statistics
type DashboardHandler struct {
	statsRepo  repositories.StatsRepository
	deviceRepo repositories.DeviceRepository
	eventRepo  repositories.SecurityEventRepository
	logger     *pterm.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	statsRepo repositories.StatsRepository,
	deviceRepo repositories.DeviceRepository,
	eventRepo repositories.SecurityEventRepository,
	logger *pterm.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		statsRepo:  statsRepo,
		deviceRepo: deviceRepo,
		eventRepo:  eventRepo,
		logger:     logger,
	}
}

// intQuery reads an integer query parameter with a default
func intQuery(c *gin.Context, name string, defaultValue int) int {
	valueStr := c.Query(name)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetSummary returns the headline dashboard numbers
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	summary, err := h.statsRepo.GetSummary()
	if err != nil {
		h.logger.WithCaller().Error("Failed to get summary", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetDevices lists devices with pagination and optional type filter
func (h *DashboardHandler) GetDevices(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	deviceType := c.Query("type")

	devices, err := h.deviceRepo.FindAll(limit, offset, deviceType)
	if err != nil {
		h.logger.WithCaller().Error("Failed to list devices", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}

// GetDevice returns a single device by hostname
func (h *DashboardHandler) GetDevice(c *gin.Context) {
	hostname := c.Param("hostname")

	device, err := h.deviceRepo.FindByHostname(hostname)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found", "hostname": hostname})
		return
	}
	c.JSON(http.StatusOK, device)
}

// GetRecentEvents returns the most recent security events
func (h *DashboardHandler) GetRecentEvents(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	events, err := h.eventRepo.FindRecent(limit)
	if err != nil {
		h.logger.WithCaller().Error("Failed to list recent events", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetEventsBySourceIP returns events originating from one IP
func (h *DashboardHandler) GetEventsBySourceIP(c *gin.Context) {
	sourceIP := c.Param("ip")
	limit := intQuery(c, "limit", 50)

	events, err := h.eventRepo.FindBySourceIP(sourceIP, limit)
	if err != nil {
		h.logger.WithCaller().Error("Failed to list events by source IP",
			h.logger.Args("ip", sourceIP, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetCategoryDistribution returns event counts per classifier category
func (h *DashboardHandler) GetCategoryDistribution(c *gin.Context) {
	stats, err := h.statsRepo.GetCategoryDistribution()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get category distribution"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": stats})
}

// GetSeverityDistribution returns event counts per severity
func (h *DashboardHandler) GetSeverityDistribution(c *gin.Context) {
	stats, err := h.statsRepo.GetSeverityDistribution()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get severity distribution"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"severities": stats})
}

// GetDeviceTypeDistribution returns device counts per inferred type
func (h *DashboardHandler) GetDeviceTypeDistribution(c *gin.Context) {
	stats, err := h.statsRepo.GetDeviceTypeDistribution()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get device type distribution"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_types": stats})
}

// GetTopSourceIPs returns the busiest event sources with any matching
// inventory hostname
func (h *DashboardHandler) GetTopSourceIPs(c *gin.Context) {
	limit := intQuery(c, "limit", 10)

	stats, err := h.statsRepo.GetTopSourceIPs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get top source IPs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source_ips": stats})
}

// GetEventTimeline returns hourly event buckets
func (h *DashboardHandler) GetEventTimeline(c *gin.Context) {
	hours := intQuery(c, "hours", 24)

	buckets, err := h.statsRepo.GetEventTimeline(hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get event timeline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": buckets, "hours": hours})
}
