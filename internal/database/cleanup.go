package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// CleanupService enforces the retention window on the append-only
// security event log. Devices are never deleted automatically.
type CleanupService struct {
	db              *gorm.DB
	logger          *pterm.Logger
	retentionDays   int
	cleanupInterval time.Duration
	cleanupTime     string // Time of day to run cleanup (24-hour format, e.g. "02:00")
	vacuumEnabled   bool
	stopChan        chan struct{}
	running         bool

	// Stats tracking
	statsMu         sync.Mutex
	lastRunTime     time.Time
	recordsDeleted  int64
	cleanupDuration time.Duration
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(db *gorm.DB, logger *pterm.Logger, retentionDays int, cleanupInterval time.Duration, cleanupTime string, vacuumEnabled bool) *CleanupService {
	return &CleanupService{
		db:              db,
		logger:          logger,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		cleanupTime:     cleanupTime,
		vacuumEnabled:   vacuumEnabled,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the scheduled cleanup loop
func (s *CleanupService) Start() {
	if s.retentionDays <= 0 {
		s.logger.Info("Event retention disabled (DB_RETENTION_DAYS=0), cleanup service not started")
		return
	}

	s.running = true
	s.logger.Info("Starting event cleanup service",
		s.logger.Args(
			"retention_days", s.retentionDays,
			"cleanup_time", s.cleanupTime,
			"vacuum_enabled", s.vacuumEnabled,
		))

	go s.scheduledCleanupLoop()
}

// Stop stops the cleanup service
func (s *CleanupService) Stop() {
	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
	s.logger.Info("Event cleanup service stopped")
}

func (s *CleanupService) scheduledCleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if s.isCleanupTime() {
				if err := s.RunCleanup(); err != nil {
					s.logger.WithCaller().Error("Scheduled cleanup failed",
						s.logger.Args("error", err))
				}
			}
		}
	}
}

// isCleanupTime checks whether the current hour matches the configured
// cleanup time and no run happened within the last interval
func (s *CleanupService) isCleanupTime() bool {
	scheduled, err := time.Parse("15:04", s.cleanupTime)
	if err != nil {
		s.logger.Warn("Invalid cleanup time, running on interval instead",
			s.logger.Args("cleanup_time", s.cleanupTime))
		return true
	}

	now := time.Now()
	if now.Hour() != scheduled.Hour() {
		return false
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return now.Sub(s.lastRunTime) >= s.cleanupInterval
}

// RunCleanup deletes events older than the retention window
func (s *CleanupService) RunCleanup() error {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -s.retentionDays)

	s.logger.Info("Running event retention cleanup",
		s.logger.Args("cutoff", cutoff.Format("2006-01-02"), "retention_days", s.retentionDays))

	result := s.db.Exec("DELETE FROM security_events WHERE timestamp < ?", cutoff)
	if result.Error != nil {
		return fmt.Errorf("failed to delete expired events: %w", result.Error)
	}

	deleted := result.RowsAffected

	if s.vacuumEnabled && deleted > 0 {
		s.logger.Debug("Running VACUUM to reclaim space...")
		if err := s.db.Exec("VACUUM").Error; err != nil {
			s.logger.Warn("VACUUM failed", s.logger.Args("error", err))
		}
	}

	duration := time.Since(start)

	s.statsMu.Lock()
	s.lastRunTime = start
	s.recordsDeleted += deleted
	s.cleanupDuration = duration
	s.statsMu.Unlock()

	s.logger.Info("Event retention cleanup completed",
		s.logger.Args(
			"deleted", deleted,
			"duration_ms", duration.Milliseconds(),
		))

	return nil
}
