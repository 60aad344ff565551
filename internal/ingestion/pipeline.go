package ingestion

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"time"

	"finwatch/internal/database/models"
	"finwatch/internal/database/repositories"
	"finwatch/internal/enrichment"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Config holds pipeline tuning knobs
type Config struct {
	Delimiter    rune
	BatchSize    int // Events are flushed to the store in batches of this size
	MaxEventRows int // Cap on event rows ingested per run (0 = unlimited)
}

// Pipeline runs read -> normalize -> classify -> upsert, one row at a
// time within a source. Independent sources run in parallel with no
// shared mutable state other than the persistent store.
type Pipeline struct {
	deviceRepo repositories.DeviceRepository
	eventRepo  repositories.SecurityEventRepository
	classifier *Classifier
	geoIP      *enrichment.GeoIPEnricher
	logger     *pterm.Logger

	delimiter    rune
	batchSize    int
	maxEventRows int

	mu          sync.RWMutex
	lastReports []*Report
}

// NewPipeline creates an ingestion pipeline. geoIP may be nil to disable
// enrichment.
func NewPipeline(
	deviceRepo repositories.DeviceRepository,
	eventRepo repositories.SecurityEventRepository,
	classifier *Classifier,
	geoIP *enrichment.GeoIPEnricher,
	logger *pterm.Logger,
	cfg Config,
) *Pipeline {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	return &Pipeline{
		deviceRepo:   deviceRepo,
		eventRepo:    eventRepo,
		classifier:   classifier,
		geoIP:        geoIP,
		logger:       logger,
		delimiter:    cfg.Delimiter,
		batchSize:    cfg.BatchSize,
		maxEventRows: cfg.MaxEventRows,
	}
}

// Run ingests the device inventory and the event log in parallel.
// Empty paths are skipped. Reports for all attempted sources are
// returned and remembered for the reporting API.
func (p *Pipeline) Run(ctx context.Context, devicePath, eventPath string) []*Report {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []*Report
	)

	ingest := func(fn func(context.Context, string) *Report, path string) {
		defer wg.Done()
		report := fn(ctx, path)
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
	}

	if devicePath != "" {
		wg.Add(1)
		go ingest(p.IngestDevices, devicePath)
	}
	if eventPath != "" {
		wg.Add(1)
		go ingest(p.IngestEvents, eventPath)
	}
	wg.Wait()

	p.mu.Lock()
	p.lastReports = reports
	p.mu.Unlock()

	for _, report := range reports {
		p.logger.Info("Ingestion run completed for source",
			p.logger.Args(
				"source", report.SourceName,
				"rows_read", report.RowsRead,
				"rows_written", report.RowsWritten,
				"rows_skipped", report.RowsSkipped,
				"errors", len(report.Errors),
				"duration", report.Duration,
			))
	}

	return reports
}

// LastReports returns the reports of the most recent run
func (p *Pipeline) LastReports() []*Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReports
}

// IngestDevices ingests a device inventory file. Devices are upserted by
// hostname, so repeated runs over the same file yield no duplicates.
func (p *Pipeline) IngestDevices(ctx context.Context, path string) *Report {
	report := NewReport(filepath.Base(path))
	defer report.Finish()

	reader, err := NewSourceReader(path, p.delimiter, p.logger)
	if err != nil {
		report.RecordSourceFailure(err)
		return report
	}
	defer reader.Close()

	for {
		if ctx.Err() != nil {
			p.logger.Warn("Device ingestion cancelled",
				p.logger.Args("source", report.SourceName, "rows_read", report.RowsRead))
			break
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.RowsRead++
			report.RecordRowError(report.RowsRead, err.Error())
			continue
		}
		report.RowsRead++

		record, err := NormalizeDevice(row)
		if err != nil {
			report.RecordRowError(row.Index, err.Error())
			continue
		}
		if record.Hostname == "" {
			report.RecordRowError(row.Index, "blank device identifier")
			continue
		}
		if record.IPAddress == "" {
			report.RecordRowError(row.Index, "missing or invalid IP address")
			continue
		}

		device := &models.Device{
			Hostname:   record.Hostname,
			IPAddress:  record.IPAddress,
			DeviceType: record.DeviceType,
			Status:     record.Status,
			OS:         record.OS,
			Notes:      record.Notes,
		}

		result, err := p.deviceRepo.Upsert(device)
		if err != nil {
			// Row-level failure isolation: record and continue the batch
			report.RecordRowError(row.Index, "store write failed: "+err.Error())
			continue
		}

		report.RowsWritten++
		p.logger.Trace("Upserted device",
			p.logger.Args("hostname", device.Hostname, "result", result.String()))
	}

	return report
}

// IngestEvents ingests an event log file. Events are append-only; the
// configured per-run cap guards against unbounded ingestion.
func (p *Pipeline) IngestEvents(ctx context.Context, path string) *Report {
	report := NewReport(filepath.Base(path))
	defer report.Finish()

	reader, err := NewSourceReader(path, p.delimiter, p.logger)
	if err != nil {
		report.RecordSourceFailure(err)
		return report
	}
	defer reader.Close()

	batch := make([]pendingEvent, 0, p.batchSize)

	for {
		if ctx.Err() != nil {
			p.logger.Warn("Event ingestion cancelled",
				p.logger.Args("source", report.SourceName, "rows_read", report.RowsRead))
			break
		}
		if p.maxEventRows > 0 && report.RowsRead >= p.maxEventRows {
			p.logger.Warn("Event row cap reached, stopping ingestion for this run",
				p.logger.Args("source", report.SourceName, "cap", p.maxEventRows))
			break
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.RowsRead++
			report.RecordRowError(report.RowsRead, err.Error())
			continue
		}
		report.RowsRead++

		batch = append(batch, pendingEvent{
			rowIndex: row.Index,
			event:    p.buildEvent(report.SourceName, row),
		})

		if len(batch) >= p.batchSize {
			p.flushEvents(batch, report)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		p.flushEvents(batch, report)
	}

	return report
}

// buildEvent normalizes, classifies and enriches one event row
func (p *Pipeline) buildEvent(sourceName string, row *Row) *models.SecurityEvent {
	record := NormalizeEvent(row)
	classification := p.classifier.Classify(record.EventType)

	timestamp := record.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	event := &models.SecurityEvent{
		ID:         uuid.NewString(),
		SourceName: sourceName,
		EventType:  record.EventType,
		Category:   classification.Category,
		Severity:   classification.Severity,
		SourceIP:   record.SourceIP,
		Timestamp:  timestamp,
		Details:    record.Details,
		IsThreat:   classification.Threat,
	}

	if p.geoIP != nil {
		if err := p.geoIP.Enrich(event); err != nil {
			p.logger.Debug("GeoIP enrichment failed",
				p.logger.Args("ip", event.SourceIP, "error", err))
		}
	}

	return event
}

// pendingEvent keeps the source row index alongside the built event so
// write failures can be reported against the right row
type pendingEvent struct {
	rowIndex int
	event    *models.SecurityEvent
}

// flushEvents writes a batch of events. A failed batch insert falls back
// to per-row inserts so one bad row cannot sink its neighbours.
func (p *Pipeline) flushEvents(batch []pendingEvent, report *Report) {
	events := make([]*models.SecurityEvent, len(batch))
	for i, pending := range batch {
		events[i] = pending.event
	}

	if err := p.eventRepo.CreateBatch(events); err == nil {
		report.RowsWritten += len(batch)
		return
	}

	p.logger.Warn("Batch insert failed, retrying rows individually",
		p.logger.Args("source", report.SourceName, "count", len(batch)))

	for _, pending := range batch {
		if err := p.eventRepo.Create(pending.event); err != nil {
			report.RecordRowError(pending.rowIndex, "store write failed: "+err.Error())
			continue
		}
		report.RowsWritten++
	}
}
