package repositories

import (
	"time"

	"finwatch/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// SecurityEventRepository handles the append-only security event log
type SecurityEventRepository interface {
	Create(event *models.SecurityEvent) error
	CreateBatch(events []*models.SecurityEvent) error
	FindRecent(limit int) ([]*models.SecurityEvent, error)
	FindBySourceIP(sourceIP string, limit int) ([]*models.SecurityEvent, error)
	FindByTimeRange(start, end time.Time, limit int) ([]*models.SecurityEvent, error)
	Count() (int64, error)
	CountSince(since time.Time) (int64, error)
	CountThreats() (int64, error)
}

type securityEventRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

// NewSecurityEventRepository creates a new security event repository
func NewSecurityEventRepository(db *gorm.DB, logger *pterm.Logger) SecurityEventRepository {
	return &securityEventRepo{
		db:     db,
		logger: logger,
	}
}

// Create inserts a single security event
func (r *securityEventRepo) Create(event *models.SecurityEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		r.logger.WithCaller().Error("Failed to create security event", r.logger.Args("error", err))
		return err
	}
	r.logger.Trace("Created security event",
		r.logger.Args("id", event.ID, "category", event.Category))
	return nil
}

// CreateBatch inserts multiple security events in a single transaction.
// Splits large batches to stay under the SQLite variable limit (32766).
func (r *securityEventRepo) CreateBatch(events []*models.SecurityEvent) error {
	if len(events) == 0 {
		r.logger.Debug("Empty batch, skipping insert")
		return nil
	}

	// SecurityEvent has ~11 columns, so ~2900 records fit under the limit.
	// Use a conservative chunk size to leave headroom.
	const maxRecordsPerBatch = 2000

	if len(events) <= maxRecordsPerBatch {
		return r.insertSubBatch(events)
	}

	r.logger.Debug("Splitting large batch to avoid variable limit",
		r.logger.Args("total_records", len(events), "max_per_batch", maxRecordsPerBatch))

	for i := 0; i < len(events); i += maxRecordsPerBatch {
		end := i + maxRecordsPerBatch
		if end > len(events) {
			end = len(events)
		}
		if err := r.insertSubBatch(events[i:end]); err != nil {
			return err
		}
	}

	return nil
}

func (r *securityEventRepo) insertSubBatch(events []*models.SecurityEvent) error {
	tx := r.db.Begin()
	if tx.Error != nil {
		r.logger.WithCaller().Error("Failed to begin transaction", r.logger.Args("error", tx.Error))
		return tx.Error
	}

	if err := tx.Create(&events).Error; err != nil {
		tx.Rollback()
		r.logger.WithCaller().Error("Failed to insert event batch",
			r.logger.Args("count", len(events), "error", err))
		return err
	}

	if err := tx.Commit().Error; err != nil {
		r.logger.WithCaller().Error("Failed to commit transaction", r.logger.Args("error", err))
		return err
	}

	return nil
}

// FindRecent retrieves the most recent security events
func (r *securityEventRepo) FindRecent(limit int) ([]*models.SecurityEvent, error) {
	var events []*models.SecurityEvent
	query := r.db.Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		r.logger.WithCaller().Error("Failed to find recent events", r.logger.Args("error", err))
		return nil, err
	}
	return events, nil
}

// FindBySourceIP retrieves events originating from a specific IP
func (r *securityEventRepo) FindBySourceIP(sourceIP string, limit int) ([]*models.SecurityEvent, error) {
	var events []*models.SecurityEvent
	query := r.db.Where("source_ip = ?", sourceIP).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		r.logger.WithCaller().Error("Failed to find events by source IP",
			r.logger.Args("source_ip", sourceIP, "error", err))
		return nil, err
	}
	return events, nil
}

// FindByTimeRange retrieves events within a time range
func (r *securityEventRepo) FindByTimeRange(start, end time.Time, limit int) ([]*models.SecurityEvent, error) {
	var events []*models.SecurityEvent
	query := r.db.Where("timestamp BETWEEN ? AND ?", start, end).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		r.logger.WithCaller().Error("Failed to find events by time range",
			r.logger.Args("start", start, "end", end, "error", err))
		return nil, err
	}
	return events, nil
}

// Count returns the total number of security events
func (r *securityEventRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.SecurityEvent{}).Count(&count).Error
	return count, err
}

// CountSince returns the number of events newer than the given time
func (r *securityEventRepo) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.SecurityEvent{}).Where("timestamp > ?", since).Count(&count).Error
	return count, err
}

// CountThreats returns the number of events flagged as threats
func (r *securityEventRepo) CountThreats() (int64, error) {
	var count int64
	err := r.db.Model(&models.SecurityEvent{}).Where("is_threat = ?", true).Count(&count).Error
	return count, err
}
