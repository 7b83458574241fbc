package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// checkInterval is how often the watcher probes the season boundary. The
// store also checks lazily on every request; the watcher only guarantees
// idle streaming clients learn of a rollover promptly.
const checkInterval = time.Minute

// SeasonSource is the store surface the watcher needs.
type SeasonSource interface {
	EnsureActiveSeason() bool
}

// SeasonWatcher periodically triggers the store's lazy season check so a
// rollover happens close to the boundary even with zero request traffic.
type SeasonWatcher struct {
	store   SeasonSource
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSeasonWatcher creates a new watcher
func NewSeasonWatcher(store SeasonSource, logger *slog.Logger) *SeasonWatcher {
	return &SeasonWatcher{
		store:  store,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background check loop
func (w *SeasonWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("season watcher started", "interval", checkInterval)

	go w.run(ctx)
	return nil
}

// Stop stops the background check loop
func (w *SeasonWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("season watcher stopped")
	return nil
}

// run is the main worker loop
func (w *SeasonWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.store.EnsureActiveSeason() {
				w.logger.Info("season rollover triggered by watcher")
			}
		}
	}
}

// IsRunning returns whether the watcher is currently running
func (w *SeasonWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
