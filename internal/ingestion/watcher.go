package ingestion

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// Watcher re-runs the pipeline when a watched source file changes.
// Changes are debounced so a file being rewritten in chunks triggers a
// single run. Re-running is safe: device ingestion is idempotent by
// hostname and already-written event rows remain valid.
type Watcher struct {
	pipeline   *Pipeline
	devicePath string
	eventPath  string
	debounce   time.Duration
	logger     *pterm.Logger

	fsWatcher *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWatcher creates a watcher over the pipeline's source files
func NewWatcher(pipeline *Pipeline, devicePath, eventPath string, logger *pterm.Logger) *Watcher {
	return &Watcher{
		pipeline:   pipeline,
		devicePath: devicePath,
		eventPath:  eventPath,
		debounce:   2 * time.Second,
		logger:     logger,
	}
}

// Start begins watching the directories containing the source files.
// Directories are watched rather than the files themselves so that
// delete-and-recreate rewrites keep being observed.
func (w *Watcher) Start() error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsWatcher

	watched := map[string]bool{}
	for _, path := range []string{w.devicePath, w.eventPath} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			w.logger.Warn("Failed to watch source directory",
				w.logger.Args("dir", dir, "error", err))
			continue
		}
		watched[dir] = true
		w.logger.Debug("Watching source directory", w.logger.Args("dir", dir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(ctx)

	w.logger.Info("Source file watcher started",
		w.logger.Args("directories", len(watched)))
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	w.wg.Wait()
	w.logger.Info("Source file watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	// The debounce timer fires back into this loop, so the triggered run
	// executes on the goroutine Stop waits for
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case <-timer.C:
			pending = false
			w.logger.Info("Source file changed, re-running ingestion")
			w.pipeline.Run(ctx, w.devicePath, w.eventPath)

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isSourceFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug("File system event on source",
				w.logger.Args("file", event.Name, "op", event.Op.String()))

			// Debounce: restart the timer on every event
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", w.logger.Args("error", err))
		}
	}
}

func (w *Watcher) isSourceFile(name string) bool {
	base := filepath.Base(name)
	return (w.devicePath != "" && base == filepath.Base(w.devicePath)) ||
		(w.eventPath != "" && base == filepath.Base(w.eventPath))
}
