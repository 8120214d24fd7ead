package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Refresher refreshes a directory on a cron schedule.
type Refresher struct {
	dir      *Directory
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher for dir. An empty schedule disables it.
func NewRefresher(dir *Directory, schedule string) *Refresher {
	return &Refresher{
		dir:      dir,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "directory.refresher"),
	}
}

// Start schedules refreshes until ctx is cancelled or Stop is called.
//
// Examples:
//   - "*/5 * * * *" - every 5 minutes
//   - "@every 30s"  - every 30 seconds
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("refresh schedule not configured, refreshing on lookup misses only")
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.running = true
	r.logger.Info("directory refresher started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	snap, err := r.dir.Refresh(ctx)
	if err != nil {
		r.logger.Error("scheduled directory refresh failed", "error", err)
		return
	}
	r.logger.Debug("scheduled directory refresh completed", "apps", snap.Len())
}

// Stop stops the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("directory refresher stopped")
}

// IsRunning reports whether the schedule is active.
func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
