package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hchttp/gateway/internal/conductortest"
	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/holohash"
)

type fakeLister struct {
	mu    sync.Mutex
	apps  []conductor.AppInfo
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeLister) ListRunningApps(context.Context) ([]conductor.AppInfo, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps, f.err
}

func (f *fakeLister) set(apps ...conductor.AppInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = apps
}

func appInfo(id string, dnas ...holohash.DnaHash) conductor.AppInfo {
	var agent holohash.AgentPubKey
	agent[0] = 0x84
	cells := make([]conductor.CellInfo, 0, len(dnas))
	for _, dna := range dnas {
		cells = append(cells, conductor.CellInfo{
			Type:  conductor.CellTypeProvisioned,
			Value: conductor.CellInfoValue{CellID: &conductor.CellID{DnaHash: dna, AgentPubKey: agent}},
		})
	}
	return conductor.AppInfo{
		InstalledAppID: id,
		Status:         conductor.AppStatusRunning,
		CellInfo:       map[string][]conductor.CellInfo{"main": cells},
	}
}

func newResolver(t *testing.T, lister Lister, allowed ...string) (*Resolver, *Directory) {
	t.Helper()
	apps := config.AppsConfig{AllowedFns: map[string][]string{}}
	for _, id := range allowed {
		apps.AllowedAppIDs = append(apps.AllowedAppIDs, id)
		apps.AllowedFns[id] = []string{"forum/get_posts"}
	}
	allow, err := config.NewAllowList(apps)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}
	dir := New(lister, nil)
	return NewResolver(dir, allow), dir
}

func TestResolve(t *testing.T) {
	dna := conductortest.DnaHash(1)
	other := conductortest.DnaHash(2)

	tests := []struct {
		name      string
		apps      []conductor.AppInfo
		listErr   error
		target    holohash.DnaHash
		appID     string
		wantKind  gwerrors.Kind
		wantCalls int32
	}{
		{
			name:      "found",
			apps:      []conductor.AppInfo{appInfo("forum", dna)},
			target:    dna,
			appID:     "forum",
			wantCalls: 1,
		},
		{
			name:      "unknown app",
			apps:      []conductor.AppInfo{appInfo("forum", dna)},
			target:    dna,
			appID:     "chat",
			wantKind:  gwerrors.KindNotFound,
			wantCalls: 1,
		},
		{
			name:      "dna not in app",
			apps:      []conductor.AppInfo{appInfo("forum", dna)},
			target:    other,
			appID:     "forum",
			wantKind:  gwerrors.KindNotFound,
			wantCalls: 1,
		},
		{
			name:      "not allowlisted",
			apps:      []conductor.AppInfo{appInfo("chat", dna)},
			target:    dna,
			appID:     "chat",
			wantKind:  gwerrors.KindForbidden,
			wantCalls: 1,
		},
		{
			name:      "duplicate app id",
			apps:      []conductor.AppInfo{appInfo("forum", dna), appInfo("forum", other)},
			target:    dna,
			appID:     "forum",
			wantKind:  gwerrors.KindConductor,
			wantCalls: 1,
		},
		{
			name:      "listing fails",
			listErr:   errors.New("admin unreachable"),
			target:    dna,
			appID:     "forum",
			wantKind:  gwerrors.KindConductor,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{apps: tt.apps, err: tt.listErr}
			r, _ := newResolver(t, lister, "forum")

			rec, err := r.Resolve(context.Background(), tt.target, tt.appID)
			if tt.wantKind == gwerrors.KindUnknown {
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if rec.AppID != tt.appID {
					t.Errorf("AppID = %q", rec.AppID)
				}
				if _, ok := rec.CellFor(tt.target); !ok {
					t.Error("record has no cell for target")
				}
			} else if got := gwerrors.KindOf(err); got != tt.wantKind {
				t.Errorf("Resolve() kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
			if got := lister.calls.Load(); got != tt.wantCalls {
				t.Errorf("list calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestResolve_UsesSnapshotOnHit(t *testing.T) {
	dna := conductortest.DnaHash(1)
	lister := &fakeLister{apps: []conductor.AppInfo{appInfo("forum", dna)}}
	r, _ := newResolver(t, lister, "forum")
	ctx := context.Background()

	for range 3 {
		if _, err := r.Resolve(ctx, dna, "forum"); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if got := lister.calls.Load(); got != 1 {
		t.Errorf("list calls = %d, want 1", got)
	}
}

func TestResolve_RefreshesOnMiss(t *testing.T) {
	dna := conductortest.DnaHash(1)
	lister := &fakeLister{apps: []conductor.AppInfo{appInfo("other", dna)}}
	r, _ := newResolver(t, lister, "forum")
	ctx := context.Background()

	if _, err := r.Resolve(ctx, dna, "forum"); !gwerrors.Is(err, gwerrors.KindNotFound) {
		t.Fatalf("Resolve() before install = %v, want not found", err)
	}

	lister.set(appInfo("other", dna), appInfo("forum", dna))
	if _, err := r.Resolve(ctx, dna, "forum"); err != nil {
		t.Fatalf("Resolve() after install error = %v", err)
	}
	if got := lister.calls.Load(); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	dna := conductortest.DnaHash(1)
	lister := &fakeLister{apps: []conductor.AppInfo{appInfo("forum", dna)}}
	_, dir := newResolver(t, lister, "forum")
	ctx := context.Background()

	before, err := dir.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	lister.mu.Lock()
	lister.err = errors.New("boom")
	lister.mu.Unlock()

	if _, err := dir.Refresh(ctx); !gwerrors.Is(err, gwerrors.KindConductor) {
		t.Fatalf("Refresh() error = %v, want conductor error", err)
	}
	if dir.Snapshot() != before {
		t.Error("failed refresh replaced the snapshot")
	}
}

func TestRefresh_SingleFlight(t *testing.T) {
	lister := &fakeLister{
		apps:  []conductor.AppInfo{appInfo("forum", conductortest.DnaHash(1))},
		delay: 50 * time.Millisecond,
	}
	dir := New(lister, nil)

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := dir.Refresh(context.Background())
			if err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
			snaps[i] = snap
		}()
	}
	wg.Wait()

	if got := lister.calls.Load(); got != 1 {
		t.Errorf("list calls = %d, want 1", got)
	}
	for _, snap := range snaps[1:] {
		if snap != snaps[0] {
			t.Error("waiters observed different snapshots")
		}
	}
}

func TestRefresh_CallerCancelDoesNotAbortListing(t *testing.T) {
	lister := &fakeLister{
		apps:  []conductor.AppInfo{appInfo("forum", conductortest.DnaHash(1))},
		delay: 50 * time.Millisecond,
	}
	dir := New(lister, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := dir.Refresh(ctx); !gwerrors.Is(err, gwerrors.KindConductor) {
		t.Fatalf("Refresh() error = %v, want conductor error", err)
	}

	deadline := time.Now().Add(time.Second)
	for dir.Snapshot() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dir.Snapshot() == nil || dir.Snapshot().Len() != 1 {
		t.Error("abandoned refresh did not publish its snapshot")
	}
}

func TestSnapshot_ProvisionedCellsOnly(t *testing.T) {
	dna := conductortest.DnaHash(1)
	clone := conductortest.DnaHash(2)
	info := appInfo("forum", dna)
	info.CellInfo["clones"] = []conductor.CellInfo{{
		Type:  conductor.CellTypeCloned,
		Value: conductor.CellInfoValue{CellID: &conductor.CellID{DnaHash: clone}},
	}}

	snap := NewSnapshot([]conductor.AppInfo{info}, time.Now())
	if _, res := snap.match("forum", dna); res != matchFound {
		t.Error("provisioned cell not addressable")
	}
	if _, res := snap.match("forum", clone); res != matchMiss {
		t.Error("cloned cell should not be addressable")
	}
}

func TestCheckFunction(t *testing.T) {
	r, _ := newResolver(t, &fakeLister{}, "forum")

	tests := []struct {
		name    string
		appID   string
		zome    string
		fn      string
		wantErr bool
	}{
		{"allowed", "forum", "forum", "get_posts", false},
		{"other function", "forum", "forum", "create_post", true},
		{"other app", "chat", "forum", "get_posts", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CheckFunction(tt.appID, tt.zome, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFunction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !gwerrors.Is(err, gwerrors.KindForbidden) {
				t.Errorf("kind = %v, want forbidden", gwerrors.KindOf(err))
			}
		})
	}
}
