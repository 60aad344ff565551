package discovery

import (
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
)

// SourceKind identifies which schema a discovered file follows
type SourceKind string

const (
	KindDeviceInventory SourceKind = "device_inventory"
	KindEventLog        SourceKind = "event_log"
)

// Source is a discovered tabular data file
type Source struct {
	Kind SourceKind
	Path string
}

// Filenames probed per kind. Exports of the event log sometimes carry a
// stray space before the extension, so both spellings are tried.
var knownFilenames = []struct {
	kind  SourceKind
	names []string
}{
	{KindDeviceInventory, []string{"network_inventory.csv", "device_inventory.csv"}},
	{KindEventLog, []string{"event_logs.csv", "event_logs .csv", "events.csv"}},
}

// Engine locates source files in a data directory when no explicit paths
// are configured
type Engine struct {
	dataDir string
	logger  *pterm.Logger
}

// NewEngine creates a discovery engine over a data directory
func NewEngine(dataDir string, logger *pterm.Logger) *Engine {
	return &Engine{
		dataDir: dataDir,
		logger:  logger,
	}
}

// Discover probes the data directory for known filenames and returns the
// first readable match per kind. A kind with no match is simply absent
// from the result; missing files are not an error at discovery time.
func (e *Engine) Discover() []*Source {
	sources := []*Source{}

	for _, candidate := range knownFilenames {
		for _, name := range candidate.names {
			path := filepath.Join(e.dataDir, name)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				e.logger.Trace("Source candidate not found", e.logger.Args("path", path))
				continue
			}
			e.logger.Info("Discovered data source",
				e.logger.Args("kind", string(candidate.kind), "path", path, "size", info.Size()))
			sources = append(sources, &Source{Kind: candidate.kind, Path: path})
			break
		}
	}

	if len(sources) == 0 {
		e.logger.Warn("No data sources discovered",
			e.logger.Args("data_dir", e.dataDir))
	}

	return sources
}

// Find returns the discovered path for a kind, or empty
func Find(sources []*Source, kind SourceKind) string {
	for _, source := range sources {
		if source.Kind == kind {
			return source.Path
		}
	}
	return ""
}
