package ingestion

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"finwatch/internal/database/models"
)

// DeviceRecord is a normalized device inventory row
type DeviceRecord struct {
	Hostname   string
	IPAddress  string
	DeviceType string
	OS         string
	Status     string
	Notes      string
}

// EventRecord is a normalized event log row, before classification
type EventRecord struct {
	EventType string
	SourceIP  string
	Timestamp time.Time // Zero when the source carries no usable timestamp
	Details   string
}

// NormalizationError indicates a row that does not match the expected
// schema at all: a required identifier column is entirely absent from the
// source columns. Reported per-row, never fatal to the batch.
type NormalizationError struct {
	Field string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("required column %q not present in source", e.Field)
}

// Column name candidates, tried in order. Lookup is case-insensitive.
var (
	deviceIdentifierColumns = []string{"Device", "hostname", "name"}
	deviceRoleColumns       = []string{"Role", "device_type", "type"}
	deviceOSColumns         = []string{"OS", "operating_system"}
	deviceNotesColumns      = []string{"Notes", "comment"}

	eventTypeColumns      = []string{"event_type", "event", "action", "type"}
	eventTimestampColumns = []string{"event_time", "timestamp", "time", "datetime"}
	eventUserColumns      = []string{"user_id", "user", "username"}
	eventProductColumns   = []string{"product_id", "product"}
	eventAmountColumns    = []string{"amount", "value"}
)

// Timestamp layouts accepted from event sources
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
}

// NormalizeDevice maps a raw inventory row onto the canonical device
// schema. Fails only when no device identifier column exists in the
// source, which indicates the file does not match the schema at all.
func NormalizeDevice(row *Row) (*DeviceRecord, error) {
	hostname, found := lookupField(row.Fields, deviceIdentifierColumns)
	if !found {
		return nil, &NormalizationError{Field: deviceIdentifierColumns[0]}
	}

	role, _ := lookupField(row.Fields, deviceRoleColumns)
	osInfo, _ := lookupField(row.Fields, deviceOSColumns)
	notes, _ := lookupField(row.Fields, deviceNotesColumns)

	return &DeviceRecord{
		Hostname:   hostname,
		IPAddress:  findIPField(row.Fields),
		DeviceType: inferDeviceType(role),
		OS:         osInfo,
		Status:     deriveDeviceStatus(notes),
		Notes:      notes,
	}, nil
}

// NormalizeEvent maps a raw event log row onto the canonical event
// schema. Never fails: a missing event type column substitutes "unknown".
func NormalizeEvent(row *Row) *EventRecord {
	eventType, found := lookupField(row.Fields, eventTypeColumns)
	if !found || eventType == "" {
		eventType = "unknown"
	}

	return &EventRecord{
		EventType: eventType,
		SourceIP:  findIPField(row.Fields),
		Timestamp: parseEventTime(row.Fields),
		Details:   buildEventDetails(eventType, row.Fields),
	}
}

// lookupField finds the first candidate column present in the row,
// case-insensitively. The bool reports whether the column exists at all,
// independent of whether its value is blank.
func lookupField(fields map[string]string, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		for name, value := range fields {
			if strings.EqualFold(name, candidate) {
				return value, true
			}
		}
	}
	return "", false
}

// findIPField returns the first value that parses as an IP address,
// preferring columns whose name mentions "ip". Columns are scanned in
// sorted name order so rows with several IP-valued columns always
// resolve to the same one.
func findIPField(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "ip") && net.ParseIP(fields[name]) != nil {
			return fields[name]
		}
	}
	for _, name := range names {
		if net.ParseIP(fields[name]) != nil {
			return fields[name]
		}
	}
	return ""
}

// inferDeviceType categorizes a device from its role text using ordered
// case-insensitive substring matching. A blank role stays unknown rather
// than defaulting to server.
func inferDeviceType(role string) string {
	if role == "" {
		return models.DeviceTypeUnknown
	}
	roleLower := strings.ToLower(role)
	switch {
	case strings.Contains(roleLower, "router"):
		return models.DeviceTypeRouter
	case strings.Contains(roleLower, "printer"):
		return models.DeviceTypePrinter
	default:
		return models.DeviceTypeServer
	}
}

// Notes keywords that raise the device status
var (
	criticalNoteKeywords = []string{"no antivirus", "outdated", "no firewall", "vulnerable"}
	warningNoteKeywords  = []string{"ssl", "tls", "update", "patch"}
)

// deriveDeviceStatus grades a device from its inventory notes
func deriveDeviceStatus(notes string) string {
	notesLower := strings.ToLower(notes)
	for _, keyword := range criticalNoteKeywords {
		if strings.Contains(notesLower, keyword) {
			return models.DeviceStatusCritical
		}
	}
	for _, keyword := range warningNoteKeywords {
		if strings.Contains(notesLower, keyword) {
			return models.DeviceStatusWarning
		}
	}
	return models.DeviceStatusActive
}

// parseEventTime extracts a source timestamp if one is present and
// parseable. Zero time means the caller should use ingestion time.
func parseEventTime(fields map[string]string) time.Time {
	value, found := lookupField(fields, eventTimestampColumns)
	if !found || value == "" {
		return time.Time{}
	}
	for _, layout := range eventTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// buildEventDetails assembles a human-readable detail string from the
// optional business columns of the event row.
func buildEventDetails(eventType string, fields map[string]string) string {
	parts := []string{"Event Type: " + eventType}

	if user, found := lookupField(fields, eventUserColumns); found && user != "" && user != "unknown" {
		parts = append(parts, "User: "+user)
	}
	if product, found := lookupField(fields, eventProductColumns); found && product != "" {
		parts = append(parts, "Product: "+product)
	}
	if amount, found := lookupField(fields, eventAmountColumns); found && amount != "" {
		if parsed, err := strconv.ParseFloat(amount, 64); err == nil && parsed > 0 {
			parts = append(parts, fmt.Sprintf("Amount: $%.2f", parsed))
		}
	}

	return strings.Join(parts, " | ")
}
