package repositories

import (
	"path/filepath"
	"sync"
	"testing"

	"finwatch/internal/database/models"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDeviceRepo(t *testing.T) DeviceRepository {
	t.Helper()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Device{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	return NewDeviceRepository(db, logger)
}

func TestDeviceRepo_UpsertInserts(t *testing.T) {
	repo := newTestDeviceRepo(t)

	result, err := repo.Upsert(&models.Device{
		Hostname:   "Router1",
		IPAddress:  "10.0.0.1",
		DeviceType: models.DeviceTypeRouter,
	})
	if err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	if result != UpsertInserted {
		t.Errorf("Expected result '%s', got '%s'", UpsertInserted, result)
	}

	device, err := repo.FindByHostname("Router1")
	if err != nil {
		t.Fatalf("Failed to find device: %v", err)
	}
	if device.IPAddress != "10.0.0.1" {
		t.Errorf("Expected IP '10.0.0.1', got '%s'", device.IPAddress)
	}
}

func TestDeviceRepo_UpsertFillsOnlyBlankFields(t *testing.T) {
	repo := newTestDeviceRepo(t)

	if _, err := repo.Upsert(&models.Device{
		Hostname: "web-01",
		OS:       "Linux",
	}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	// Second row for the same host carries an IP but a conflicting OS.
	// The IP fills the blank, the OS must not be overwritten.
	result, err := repo.Upsert(&models.Device{
		Hostname:  "web-01",
		IPAddress: "192.168.1.20",
		OS:        "Windows",
	})
	if err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	if result != UpsertUpdated {
		t.Errorf("Expected result '%s', got '%s'", UpsertUpdated, result)
	}

	device, err := repo.FindByHostname("web-01")
	if err != nil {
		t.Fatalf("Failed to find device: %v", err)
	}
	if device.OS != "Linux" {
		t.Errorf("Expected OS to stay 'Linux', got '%s'", device.OS)
	}
	if device.IPAddress != "192.168.1.20" {
		t.Errorf("Expected blank IP to be filled, got '%s'", device.IPAddress)
	}
}

func TestDeviceRepo_UpsertUnchanged(t *testing.T) {
	repo := newTestDeviceRepo(t)

	device := &models.Device{
		Hostname:   "db-01",
		IPAddress:  "10.0.0.30",
		DeviceType: models.DeviceTypeServer,
		OS:         "Debian 12",
	}
	if _, err := repo.Upsert(device); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	// Identical row again: nothing to fill, no write
	result, err := repo.Upsert(&models.Device{
		Hostname:   "db-01",
		IPAddress:  "10.0.0.30",
		DeviceType: models.DeviceTypeServer,
		OS:         "Debian 12",
	})
	if err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	if result != UpsertUnchanged {
		t.Errorf("Expected result '%s', got '%s'", UpsertUnchanged, result)
	}
}

func TestDeviceRepo_UpsertUpgradesUnknownType(t *testing.T) {
	repo := newTestDeviceRepo(t)

	if _, err := repo.Upsert(&models.Device{
		Hostname:   "printer-01",
		DeviceType: models.DeviceTypeUnknown,
	}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	// An unknown type counts as blank: a later row with a real type wins
	if _, err := repo.Upsert(&models.Device{
		Hostname:   "printer-01",
		DeviceType: models.DeviceTypePrinter,
	}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	device, err := repo.FindByHostname("printer-01")
	if err != nil {
		t.Fatalf("Failed to find device: %v", err)
	}
	if device.DeviceType != models.DeviceTypePrinter {
		t.Errorf("Expected unknown type to be upgraded to '%s', got '%s'",
			models.DeviceTypePrinter, device.DeviceType)
	}

	// But a known type is never downgraded back to unknown
	if _, err := repo.Upsert(&models.Device{
		Hostname:   "printer-01",
		DeviceType: models.DeviceTypeUnknown,
	}); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}
	device, _ = repo.FindByHostname("printer-01")
	if device.DeviceType != models.DeviceTypePrinter {
		t.Errorf("Expected type to stay '%s', got '%s'", models.DeviceTypePrinter, device.DeviceType)
	}
}

func TestDeviceRepo_ConcurrentUpsertsSameHostname(t *testing.T) {
	repo := newTestDeviceRepo(t)

	// Concurrent upserts for one hostname must yield exactly one record
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Upsert(&models.Device{
				Hostname:  "contended-host",
				IPAddress: "10.0.0.99",
			})
		}()
	}
	wg.Wait()

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Failed to count devices: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 device after concurrent upserts, got %d", count)
	}
}

func TestDeviceRepo_FindAllFiltersByType(t *testing.T) {
	repo := newTestDeviceRepo(t)

	devices := []*models.Device{
		{Hostname: "r1", DeviceType: models.DeviceTypeRouter},
		{Hostname: "r2", DeviceType: models.DeviceTypeRouter},
		{Hostname: "s1", DeviceType: models.DeviceTypeServer},
	}
	for _, device := range devices {
		if _, err := repo.Upsert(device); err != nil {
			t.Fatalf("Failed to upsert device: %v", err)
		}
	}

	routers, err := repo.FindAll(10, 0, models.DeviceTypeRouter)
	if err != nil {
		t.Fatalf("Failed to list routers: %v", err)
	}
	if len(routers) != 2 {
		t.Errorf("Expected 2 routers, got %d", len(routers))
	}

	all, err := repo.FindAll(10, 0, "")
	if err != nil {
		t.Fatalf("Failed to list devices: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 devices, got %d", len(all))
	}
}
