package enrichment

import (
	"fmt"
	"net"
	"os"

	"finwatch/internal/database/models"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

// GeoIPEnricher annotates security events with country and city looked
// up from a MaxMind city database. Optional: when the database file is
// missing the enricher stays disabled and Enrich is a no-op.
type GeoIPEnricher struct {
	cityDB  *geoip2.Reader
	logger  *pterm.Logger
	enabled bool
}

// NewGeoIPEnricher opens the city database if present
func NewGeoIPEnricher(cityDBPath string, logger *pterm.Logger) (*GeoIPEnricher, error) {
	enricher := &GeoIPEnricher{logger: logger}

	if _, err := os.Stat(cityDBPath); err != nil {
		logger.Info("GeoIP city database not found, enrichment disabled",
			logger.Args("path", cityDBPath))
		return enricher, nil
	}

	cityDB, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP city database: %w", err)
	}

	enricher.cityDB = cityDB
	enricher.enabled = true
	logger.Info("GeoIP enrichment enabled", logger.Args("path", cityDBPath))
	return enricher, nil
}

// IsEnabled reports whether a database is loaded
func (e *GeoIPEnricher) IsEnabled() bool {
	return e.enabled
}

// Enrich fills the geo fields of an event from its source IP. Private
// and unparseable addresses are left untouched.
func (e *GeoIPEnricher) Enrich(event *models.SecurityEvent) error {
	if !e.enabled || event.SourceIP == "" {
		return nil
	}

	ip := net.ParseIP(event.SourceIP)
	if ip == nil {
		return fmt.Errorf("unparseable source IP %q", event.SourceIP)
	}
	if ip.IsPrivate() || ip.IsLoopback() {
		return nil
	}

	record, err := e.cityDB.City(ip)
	if err != nil {
		return fmt.Errorf("city lookup failed: %w", err)
	}

	event.GeoCountry = record.Country.IsoCode
	if name, ok := record.City.Names["en"]; ok {
		event.GeoCity = name
	}

	return nil
}

// Close releases the database reader
func (e *GeoIPEnricher) Close() {
	if e.cityDB != nil {
		e.cityDB.Close()
	}
}
