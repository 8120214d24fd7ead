package directory

import (
	"context"
	"testing"
	"time"

	"hchttp/gateway/internal/conductortest"
	"hchttp/gateway/pkg/conductor"
)

func TestRefresher_EmptySchedule(t *testing.T) {
	r := NewRefresher(New(&fakeLister{}, nil), "")
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if r.IsRunning() {
		t.Error("refresher with no schedule should not run")
	}
}

func TestRefresher_InvalidSchedule(t *testing.T) {
	r := NewRefresher(New(&fakeLister{}, nil), "not a schedule")
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRefresher_RefreshesOnSchedule(t *testing.T) {
	lister := &fakeLister{apps: []conductor.AppInfo{appInfo("forum", conductortest.DnaHash(1))}}
	dir := New(lister, nil)
	r := NewRefresher(dir, "@every 1s")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.IsRunning() {
		t.Fatal("refresher not running")
	}

	deadline := time.Now().Add(3 * time.Second)
	for dir.Snapshot() == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if dir.Snapshot() == nil {
		t.Fatal("no scheduled refresh happened")
	}

	r.Stop()
	if r.IsRunning() {
		t.Error("refresher still running after Stop")
	}
}
