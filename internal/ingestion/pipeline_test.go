package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finwatch/internal/database/models"
	"finwatch/internal/database/repositories"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestPipeline(t *testing.T) (*Pipeline, repositories.DeviceRepository, repositories.SecurityEventRepository) {
	t.Helper()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Device{}, &models.SecurityEvent{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	// Single connection keeps concurrent source ingestion free of
	// SQLITE_BUSY in tests
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	deviceRepo := repositories.NewDeviceRepository(db, logger)
	eventRepo := repositories.NewSecurityEventRepository(db, logger)

	pipeline := NewPipeline(deviceRepo, eventRepo, NewClassifier(nil), nil, logger, Config{})
	return pipeline, deviceRepo, eventRepo
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
	return path
}

func TestPipeline_IngestDevices(t *testing.T) {
	pipeline, deviceRepo, _ := newTestPipeline(t)

	path := writeSource(t, "network_inventory.csv",
		"Device,IP,Role,OS,Notes\n"+
			"Router1,10.0.0.1,Core Router,Cisco IOS,\n"+
			"WebServer1,10.0.0.20,App Server,Ubuntu 22.04,No antivirus\n")

	report := pipeline.IngestDevices(context.Background(), path)

	if report.RowsRead != 2 {
		t.Errorf("Expected 2 rows read, got %d", report.RowsRead)
	}
	if report.RowsWritten != 2 {
		t.Errorf("Expected 2 rows written, got %d", report.RowsWritten)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", report.Errors)
	}

	router, err := deviceRepo.FindByHostname("Router1")
	if err != nil {
		t.Fatalf("Failed to find Router1: %v", err)
	}
	if router.DeviceType != models.DeviceTypeRouter {
		t.Errorf("Expected Router1 type '%s', got '%s'", models.DeviceTypeRouter, router.DeviceType)
	}

	web, err := deviceRepo.FindByHostname("WebServer1")
	if err != nil {
		t.Fatalf("Failed to find WebServer1: %v", err)
	}
	if web.DeviceType != models.DeviceTypeServer {
		t.Errorf("Expected WebServer1 type '%s', got '%s'", models.DeviceTypeServer, web.DeviceType)
	}
	if web.Status != models.DeviceStatusCritical {
		t.Errorf("Expected WebServer1 status '%s', got '%s'", models.DeviceStatusCritical, web.Status)
	}
}

func TestPipeline_DeviceIngestionIsIdempotent(t *testing.T) {
	pipeline, deviceRepo, _ := newTestPipeline(t)

	path := writeSource(t, "network_inventory.csv",
		"Device,IP,Role\n"+
			"Router1,10.0.0.1,Core Router\n"+
			"WebServer1,10.0.0.20,App Server\n")

	pipeline.IngestDevices(context.Background(), path)
	pipeline.IngestDevices(context.Background(), path)

	count, err := deviceRepo.Count()
	if err != nil {
		t.Fatalf("Failed to count devices: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 devices after repeated ingestion, got %d", count)
	}
}

func TestPipeline_DevicePartialFailure(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	// Row 5 has a blank device identifier; every other row must still land
	content := "Device,IP,Role\n"
	rows := []string{
		"host-01,10.0.0.1,Server",
		"host-02,10.0.0.2,Server",
		"host-03,10.0.0.3,Server",
		"host-04,10.0.0.4,Server",
		",10.0.0.5,Server",
		"host-06,10.0.0.6,Server",
		"host-07,10.0.0.7,Server",
		"host-08,10.0.0.8,Server",
		"host-09,10.0.0.9,Server",
		"host-10,10.0.0.10,Server",
	}
	for _, row := range rows {
		content += row + "\n"
	}
	path := writeSource(t, "network_inventory.csv", content)

	report := pipeline.IngestDevices(context.Background(), path)

	if report.RowsRead != 10 {
		t.Errorf("Expected 10 rows read, got %d", report.RowsRead)
	}
	if report.RowsWritten != 9 {
		t.Errorf("Expected 9 rows written, got %d", report.RowsWritten)
	}
	if report.RowsSkipped != 1 {
		t.Errorf("Expected 1 row skipped, got %d", report.RowsSkipped)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(report.Errors))
	}
	if report.Errors[0].RowIndex != 5 {
		t.Errorf("Expected error to reference row 5, got row %d", report.Errors[0].RowIndex)
	}
}

func TestPipeline_DeviceInvalidIPSkipped(t *testing.T) {
	pipeline, deviceRepo, _ := newTestPipeline(t)

	// A device row needs an IP-shaped value somewhere; rows without one
	// are skipped, not stored with a blank IP
	path := writeSource(t, "network_inventory.csv",
		"Device,IP,Role\n"+
			"Router9,not-an-ip,Core Router\n"+
			"Router10,10.0.0.10,Core Router\n")

	report := pipeline.IngestDevices(context.Background(), path)

	if report.RowsWritten != 1 {
		t.Errorf("Expected 1 row written, got %d", report.RowsWritten)
	}
	if report.RowsSkipped != 1 {
		t.Errorf("Expected 1 row skipped, got %d", report.RowsSkipped)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(report.Errors))
	}
	if report.Errors[0].RowIndex != 1 {
		t.Errorf("Expected error to reference row 1, got row %d", report.Errors[0].RowIndex)
	}

	if _, err := deviceRepo.FindByHostname("Router9"); err == nil {
		t.Error("Expected Router9 not to be stored")
	}
	if _, err := deviceRepo.FindByHostname("Router10"); err != nil {
		t.Errorf("Expected Router10 to be stored: %v", err)
	}
}

func TestPipeline_MissingSource(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	report := pipeline.IngestDevices(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))

	if report.RowsRead != 0 {
		t.Errorf("Expected 0 rows read for missing source, got %d", report.RowsRead)
	}
	if report.RowsWritten != 0 {
		t.Errorf("Expected 0 rows written for missing source, got %d", report.RowsWritten)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Expected 1 source-level error, got %d", len(report.Errors))
	}
	if report.Errors[0].RowIndex != 0 {
		t.Errorf("Expected source-level error at row index 0, got %d", report.Errors[0].RowIndex)
	}
}

func TestPipeline_IngestEvents(t *testing.T) {
	pipeline, _, eventRepo := newTestPipeline(t)

	path := writeSource(t, "event_logs.csv",
		"event_type,user_id,source_ip,event_time\n"+
			"login,u-1,203.0.113.7,2025-10-12 14:30:00\n"+
			"checkout,u-2,203.0.113.8,2025-10-12 14:31:00\n"+
			"page_view,u-3,203.0.113.9,2025-10-12 14:32:00\n")

	report := pipeline.IngestEvents(context.Background(), path)

	if report.RowsRead != 3 {
		t.Errorf("Expected 3 rows read, got %d", report.RowsRead)
	}
	if report.RowsWritten != 3 {
		t.Errorf("Expected 3 rows written, got %d", report.RowsWritten)
	}

	count, err := eventRepo.Count()
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 stored events, got %d", count)
	}

	events, err := eventRepo.FindBySourceIP("203.0.113.7", 10)
	if err != nil {
		t.Fatalf("Failed to find events by source IP: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event for 203.0.113.7, got %d", len(events))
	}
	if events[0].Category != models.CategoryLoginFailure {
		t.Errorf("Expected category '%s', got '%s'", models.CategoryLoginFailure, events[0].Category)
	}
	if !events[0].IsThreat {
		t.Error("Expected login event to be flagged as a threat")
	}
	if events[0].ID == "" {
		t.Error("Expected event to carry a generated ID")
	}
}

func TestPipeline_EventRowCap(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Device{}, &models.SecurityEvent{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	deviceRepo := repositories.NewDeviceRepository(db, logger)
	eventRepo := repositories.NewSecurityEventRepository(db, logger)
	pipeline := NewPipeline(deviceRepo, eventRepo, NewClassifier(nil), nil, logger, Config{
		MaxEventRows: 2,
	})

	path := writeSource(t, "event_logs.csv",
		"event_type\nlogin\ncheckout\npage_view\nsearch\n")

	report := pipeline.IngestEvents(context.Background(), path)

	if report.RowsRead != 2 {
		t.Errorf("Expected row cap to stop reading at 2, got %d rows read", report.RowsRead)
	}
	if report.RowsWritten != 2 {
		t.Errorf("Expected 2 rows written under cap, got %d", report.RowsWritten)
	}
}

func TestPipeline_Run(t *testing.T) {
	pipeline, deviceRepo, eventRepo := newTestPipeline(t)

	devicePath := writeSource(t, "network_inventory.csv",
		"Device,IP,Role\nRouter1,10.0.0.1,Core Router\n")
	eventPath := writeSource(t, "event_logs.csv",
		"event_type,source_ip\nlogin,203.0.113.7\n")

	reports := pipeline.Run(context.Background(), devicePath, eventPath)

	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}
	for _, report := range reports {
		if report.RowsWritten != 1 {
			t.Errorf("Expected 1 row written for %s, got %d", report.SourceName, report.RowsWritten)
		}
	}

	if count, _ := deviceRepo.Count(); count != 1 {
		t.Errorf("Expected 1 device, got %d", count)
	}
	if count, _ := eventRepo.Count(); count != 1 {
		t.Errorf("Expected 1 event, got %d", count)
	}

	// Reports are remembered for the API
	if len(pipeline.LastReports()) != 2 {
		t.Errorf("Expected LastReports to return 2 reports, got %d", len(pipeline.LastReports()))
	}
}

func TestPipeline_RunMissingEventSource(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	devicePath := writeSource(t, "network_inventory.csv",
		"Device,IP\nRouter1,10.0.0.1\n")

	reports := pipeline.Run(context.Background(), devicePath, filepath.Join(t.TempDir(), "absent.csv"))

	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}

	// One source failing must not stop the other
	var deviceReport, eventReport *Report
	for _, report := range reports {
		if report.SourceName == "network_inventory.csv" {
			deviceReport = report
		} else {
			eventReport = report
		}
	}
	if deviceReport == nil || deviceReport.RowsWritten != 1 {
		t.Errorf("Expected device source to ingest despite missing event source")
	}
	if eventReport == nil || len(eventReport.Errors) != 1 {
		t.Errorf("Expected missing event source to report one error")
	}
}
