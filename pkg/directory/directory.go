package directory

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/telemetry/metrics"
)

// Lister lists the running apps. *adminlink.Link implements it.
type Lister interface {
	ListRunningApps(ctx context.Context) ([]conductor.AppInfo, error)
}

// Directory holds the current snapshot of running apps.
type Directory struct {
	lister   Lister
	metrics  *metrics.Collector
	logger   *slog.Logger
	snapshot atomic.Pointer[Snapshot]
	group    singleflight.Group
}

// New creates an empty directory. Nothing is listed until the first Refresh.
func New(lister Lister, collector *metrics.Collector) *Directory {
	return &Directory{
		lister:  lister,
		metrics: collector,
		logger:  slog.Default().With("component", "directory"),
	}
}

// Snapshot returns the current snapshot, or nil before the first refresh.
func (d *Directory) Snapshot() *Snapshot {
	return d.snapshot.Load()
}

// Refresh lists the running apps and replaces the snapshot. Concurrent
// callers share one listing. On failure the previous snapshot is kept.
func (d *Directory) Refresh(ctx context.Context) (*Snapshot, error) {
	ch := d.group.DoChan("refresh", func() (any, error) {
		apps, err := d.lister.ListRunningApps(context.WithoutCancel(ctx))
		d.metrics.RecordDirectoryRefresh(metrics.Result(err))
		if err != nil {
			return nil, err
		}

		snap := NewSnapshot(apps, time.Now())
		d.snapshot.Store(snap)

		if dups := snap.Duplicates(); len(dups) > 0 {
			d.logger.Warn("conductor listed duplicate app ids", "app_ids", dups)
		}
		d.logger.Debug("app directory refreshed", "apps", snap.Len())
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, gwerrors.Conductor(res.Err, "refresh app directory")
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, gwerrors.Conductor(ctx.Err(), "refresh app directory")
	}
}
