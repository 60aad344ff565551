package ingestion

import (
	"os"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	pipeline, deviceRepo, _ := newTestPipeline(t)

	devicePath := writeSource(t, "network_inventory.csv",
		"Device,IP,Role\nRouter1,10.0.0.1,Core Router\n")

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)
	watcher := NewWatcher(pipeline, devicePath, "", logger)
	watcher.debounce = 100 * time.Millisecond

	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	content := "Device,IP,Role\nRouter1,10.0.0.1,Core Router\nRouter2,10.0.0.2,Edge Router\n"
	if err := os.WriteFile(devicePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to rewrite source: %v", err)
	}

	// Wait for the debounced run to land
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if count, _ := deviceRepo.Count(); count == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	count, _ := deviceRepo.Count()
	t.Errorf("Expected watcher to re-ingest 2 devices, got %d", count)
}

func TestWatcher_StopCancelsPendingRun(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	devicePath := writeSource(t, "network_inventory.csv",
		"Device,IP,Role\nRouter1,10.0.0.1,Core Router\n")

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)
	watcher := NewWatcher(pipeline, devicePath, "", logger)
	watcher.debounce = time.Hour

	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	if err := os.WriteFile(devicePath, []byte("Device,IP\nRouter2,10.0.0.2\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite source: %v", err)
	}

	// Stop with the debounce still pending: no run may start afterwards
	watcher.Stop()
	time.Sleep(200 * time.Millisecond)

	if reports := pipeline.LastReports(); reports != nil {
		t.Errorf("Expected no ingestion run after Stop, got %d reports", len(reports))
	}
}
