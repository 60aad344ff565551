package repositories

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const (
	// DefaultQueryTimeout is the default timeout for dashboard queries
	DefaultQueryTimeout = 30 * time.Second

	// DefaultLookbackHours is the default time range for timeline queries (7 days)
	DefaultLookbackHours = 168
)

// StatsSummary holds the headline numbers for the dashboard
type StatsSummary struct {
	TotalDevices    int64 `json:"total_devices"`
	CriticalDevices int64 `json:"critical_devices"`
	TotalEvents     int64 `json:"total_events"`
	ThreatEvents    int64 `json:"threat_events"`
	EventsLast24h   int64 `json:"events_last_24h"`
}

// CategoryStats is the event count for one classifier category
type CategoryStats struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// SeverityStats is the event count for one severity level
type SeverityStats struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

// DeviceTypeStats is the device count for one inferred device type
type DeviceTypeStats struct {
	DeviceType string `json:"device_type"`
	Count      int64  `json:"count"`
}

// SourceIPStats aggregates events per source IP, with a best-effort join
// against the device inventory on IP address
type SourceIPStats struct {
	SourceIP    string `json:"source_ip"`
	EventCount  int64  `json:"event_count"`
	ThreatCount int64  `json:"threat_count"`
	Hostname    string `json:"hostname,omitempty"`
}

// TimelineBucket is the event count for one hour of the timeline
type TimelineBucket struct {
	Hour        string `json:"hour"`
	EventCount  int64  `json:"event_count"`
	ThreatCount int64  `json:"threat_count"`
}

// StatsRepository provides dashboard statistics over devices and events
type StatsRepository interface {
	GetSummary() (*StatsSummary, error)
	GetCategoryDistribution() ([]*CategoryStats, error)
	GetSeverityDistribution() ([]*SeverityStats, error)
	GetDeviceTypeDistribution() ([]*DeviceTypeStats, error)
	GetTopSourceIPs(limit int) ([]*SourceIPStats, error)
	GetEventTimeline(hours int) ([]*TimelineBucket, error)
}

type statsRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *gorm.DB, logger *pterm.Logger) StatsRepository {
	return &statsRepo{
		db:     db,
		logger: logger,
	}
}

func (r *statsRepo) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultQueryTimeout)
}

// GetSummary returns the headline counts for devices and events
func (r *statsRepo) GetSummary() (*StatsSummary, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	summary := &StatsSummary{}
	db := r.db.WithContext(ctx)

	if err := db.Table("devices").Count(&summary.TotalDevices).Error; err != nil {
		r.logger.WithCaller().Error("Failed to count devices", r.logger.Args("error", err))
		return nil, err
	}
	if err := db.Table("devices").Where("status = ?", "critical").
		Count(&summary.CriticalDevices).Error; err != nil {
		return nil, err
	}
	if err := db.Table("security_events").Count(&summary.TotalEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Table("security_events").Where("is_threat = ?", true).
		Count(&summary.ThreatEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Table("security_events").
		Where("timestamp > ?", time.Now().Add(-24*time.Hour)).
		Count(&summary.EventsLast24h).Error; err != nil {
		return nil, err
	}

	return summary, nil
}

// GetCategoryDistribution returns event counts grouped by classifier category
func (r *statsRepo) GetCategoryDistribution() ([]*CategoryStats, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	var stats []*CategoryStats
	err := r.db.WithContext(ctx).Table("security_events").
		Select("category, COUNT(*) as count").
		Group("category").
		Order("count DESC").
		Scan(&stats).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to get category distribution", r.logger.Args("error", err))
		return nil, err
	}
	return stats, nil
}

// GetSeverityDistribution returns event counts grouped by severity
func (r *statsRepo) GetSeverityDistribution() ([]*SeverityStats, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	var stats []*SeverityStats
	err := r.db.WithContext(ctx).Table("security_events").
		Select("severity, COUNT(*) as count").
		Group("severity").
		Order("count DESC").
		Scan(&stats).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to get severity distribution", r.logger.Args("error", err))
		return nil, err
	}
	return stats, nil
}

// GetDeviceTypeDistribution returns device counts grouped by inferred type
func (r *statsRepo) GetDeviceTypeDistribution() ([]*DeviceTypeStats, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	var stats []*DeviceTypeStats
	err := r.db.WithContext(ctx).Table("devices").
		Select("device_type, COUNT(*) as count").
		Group("device_type").
		Order("count DESC").
		Scan(&stats).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to get device type distribution", r.logger.Args("error", err))
		return nil, err
	}
	return stats, nil
}

// GetTopSourceIPs returns the busiest event source IPs with the matching
// inventory hostname when one exists. LEFT JOIN: events from IPs outside
// the inventory still appear, with an empty hostname.
func (r *statsRepo) GetTopSourceIPs(limit int) ([]*SourceIPStats, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	var stats []*SourceIPStats
	err := r.db.WithContext(ctx).Table("security_events").
		Select(`security_events.source_ip,
			COUNT(*) as event_count,
			SUM(CASE WHEN security_events.is_threat THEN 1 ELSE 0 END) as threat_count,
			COALESCE(devices.hostname, '') as hostname`).
		Joins("LEFT JOIN devices ON devices.ip_address = security_events.source_ip").
		Where("security_events.source_ip != ''").
		Group("security_events.source_ip, devices.hostname").
		Order("event_count DESC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to get top source IPs", r.logger.Args("error", err))
		return nil, err
	}
	return stats, nil
}

// GetEventTimeline returns hourly event buckets for the last N hours
func (r *statsRepo) GetEventTimeline(hours int) ([]*TimelineBucket, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	if hours <= 0 {
		hours = DefaultLookbackHours
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var buckets []*TimelineBucket
	err := r.db.WithContext(ctx).Table("security_events").
		Select(`strftime('%Y-%m-%d %H:00', timestamp) as hour,
			COUNT(*) as event_count,
			SUM(CASE WHEN is_threat THEN 1 ELSE 0 END) as threat_count`).
		Where("timestamp > ?", since).
		Group("hour").
		Order("hour ASC").
		Scan(&buckets).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to get event timeline", r.logger.Args("error", err))
		return nil, err
	}
	return buckets, nil
}
