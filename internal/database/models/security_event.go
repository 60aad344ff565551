package models

import (
	"time"
)

// Event categories assigned by the classifier
const (
	CategoryLoginFailure       = "login_failure"
	CategorySuspiciousTraffic  = "suspicious_traffic"
	CategoryUnauthorizedAccess = "unauthorized_access"
	CategoryUserActivity       = "user_activity"
	CategoryUnknown            = "unknown"
)

// Event severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is append-only: rows are only ever inserted by ingestion,
// never updated or deleted (event logs may contain legitimate duplicates)
type SecurityEvent struct {
	ID         string    `gorm:"primaryKey;size:36"` // UUID
	SourceName string    `gorm:"not null;index"`
	EventType  string    `gorm:"not null;index:idx_event_type"` // Free text from the source
	Category   string    `gorm:"not null;index:idx_event_category"`
	Severity   string    `gorm:"not null;index:idx_event_severity"`
	SourceIP   string    `gorm:"index:idx_event_source_ip"`
	Timestamp  time.Time `gorm:"not null;index:idx_event_timestamp"`
	Details    string    `gorm:"type:text"`
	IsThreat   bool      `gorm:"not null;default:false"`

	// GeoIP enrichment
	GeoCountry string `gorm:"index:idx_event_geo_country"`
	GeoCity    string

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
