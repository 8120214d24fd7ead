package apppool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/internal/conductortest"
	"hchttp/gateway/pkg/adminlink"
	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/directory"
	"hchttp/gateway/pkg/gwerrors"
)

type fixture struct {
	mc   *conductortest.MockConductor
	link *adminlink.Link
	pool *Pool
	recs map[string]*directory.AppRecord
}

func newFixture(t *testing.T, capacity int, apps []string, opts ...Option) *fixture {
	t.Helper()

	mc := conductortest.NewMockConductor()
	t.Cleanup(mc.Close)
	mc.RegisterZomeFunction("forum", "get_posts", conductortest.Returning([]string{"hello"}))

	cc := config.ConductorConfig{
		AdminWSURL:     mc.AdminURL(),
		Origin:         config.DefaultOrigin,
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 2 * time.Second,
	}
	link := adminlink.New(cc)
	t.Cleanup(func() { link.Close() })

	appsCfg := config.AppsConfig{AllowedAppIDs: apps, AllowedFns: map[string][]string{}}
	for _, id := range apps {
		appsCfg.AllowedFns[id] = []string{config.AllFunctions}
	}
	allow, err := config.NewAllowList(appsCfg)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}

	pool, err := New(cc, config.LimitsConfig{MaxAppConnections: capacity}, link, allow, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	f := &fixture{mc: mc, link: link, pool: pool, recs: make(map[string]*directory.AppRecord)}
	for i, id := range apps {
		mc.InstallApp(id, conductortest.DnaHash(byte(2*i+1)), conductortest.DnaHash(byte(2*i+2)))
	}
	infos, err := link.ListRunningApps(context.Background())
	if err != nil {
		t.Fatalf("ListRunningApps() error = %v", err)
	}
	snap := directory.NewSnapshot(infos, time.Now())
	for _, id := range apps {
		rec, ok := snap.App(id)
		if !ok {
			t.Fatalf("app %q not listed", id)
		}
		f.recs[id] = rec
	}
	return f
}

// callGetPosts performs a signed zome call through slot.
func callGetPosts(ctx context.Context, rec *directory.AppRecord, slot *Slot) error {
	cells := rec.CellIDs()
	if len(cells) == 0 {
		return errors.New("app has no cells")
	}
	payload, _ := msgpack.Marshal(nil)
	signed, err := slot.Signer.SignZomeCall(cells[0], "forum", "get_posts", payload)
	if err != nil {
		return err
	}
	_, err = slot.Conn.CallZome(ctx, signed)
	return err
}

func TestPool_GetOpensAndReuses(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	ctx := context.Background()
	rec := f.recs["forum"]

	slot, created, err := f.pool.Get(ctx, rec)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !created {
		t.Error("first Get should create the slot")
	}
	if slot.Signer.Len() != 2 || f.mc.Grants() != 2 {
		t.Errorf("credentials = %d, grants = %d, want 2 each", slot.Signer.Len(), f.mc.Grants())
	}
	if err := callGetPosts(ctx, rec, slot); err != nil {
		t.Fatalf("zome call error = %v", err)
	}

	again, created, err := f.pool.Get(ctx, rec)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if created || again != slot {
		t.Error("second Get should reuse the slot")
	}
	if got := f.mc.Count("app_connect"); got != 1 {
		t.Errorf("app_connect = %d, want 1", got)
	}
	if got := f.mc.Count("attach_app_interface"); got != 1 {
		t.Errorf("attach_app_interface = %d, want 1", got)
	}
}

func TestPool_UsesExistingInterface(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	f.mc.AddAppInterface(conductor.OnlyOrigins("someone-else"), nil)
	other := "chat"
	f.mc.AddAppInterface(conductor.AnyOrigin, &other)
	port := f.mc.AddAppInterface(conductor.AnyOrigin, nil)

	slot, _, err := f.pool.Get(context.Background(), f.recs["forum"])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if slot.Port != port {
		t.Errorf("Port = %d, want %d", slot.Port, port)
	}
	if got := f.mc.Count("attach_app_interface"); got != 0 {
		t.Errorf("attach_app_interface = %d, want 0", got)
	}
	if f.pool.CachedPort() != port {
		t.Errorf("CachedPort() = %d, want %d", f.pool.CachedPort(), port)
	}
}

func TestPool_CachedPortSharedAcrossApps(t *testing.T) {
	f := newFixture(t, 10, []string{"forum", "chat"})
	ctx := context.Background()

	if _, _, err := f.pool.Get(ctx, f.recs["forum"]); err != nil {
		t.Fatalf("Get(forum) error = %v", err)
	}
	if _, _, err := f.pool.Get(ctx, f.recs["chat"]); err != nil {
		t.Fatalf("Get(chat) error = %v", err)
	}
	if got := f.mc.Count("list_app_interfaces"); got != 1 {
		t.Errorf("list_app_interfaces = %d, want 1", got)
	}
	if got := f.mc.Count("attach_app_interface"); got != 1 {
		t.Errorf("attach_app_interface = %d, want 1", got)
	}
}

func TestPool_RediscoversAfterRestart(t *testing.T) {
	f := newFixture(t, 10, []string{"forum", "chat"})
	ctx := context.Background()

	first, _, err := f.pool.Get(ctx, f.recs["forum"])
	if err != nil {
		t.Fatalf("Get(forum) error = %v", err)
	}
	f.mc.CloseAppInterfaces()

	slot, _, err := f.pool.Get(ctx, f.recs["chat"])
	if err != nil {
		t.Fatalf("Get(chat) after restart error = %v", err)
	}
	if slot.Port == first.Port {
		t.Error("expected a new port after rediscovery")
	}
	if f.pool.CachedPort() != slot.Port {
		t.Error("cached port not updated")
	}
	if got := f.mc.Count("attach_app_interface"); got != 2 {
		t.Errorf("attach_app_interface = %d, want 2", got)
	}
}

func TestPool_GiveUp(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	failing := func(context.Context, string, conductor.DialOptions, []byte) (*conductor.AppClient, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return nil, errors.New("connection refused")
	}

	f := newFixture(t, 10, []string{"forum"}, WithAppDialer(failing))
	ctx := context.Background()

	_, _, err := f.pool.Get(ctx, f.recs["forum"])
	if !gwerrors.Is(err, gwerrors.KindConductor) {
		t.Fatalf("Get() error = %v, want conductor error", err)
	}
	if dials != 1 {
		t.Errorf("dials without cached port = %d, want 1", dials)
	}

	// The attached port is now cached: cached dial, rediscover, give up.
	_, _, err = f.pool.Get(ctx, f.recs["forum"])
	if !gwerrors.Is(err, gwerrors.KindConductor) {
		t.Fatalf("Get() error = %v, want conductor error", err)
	}
	if dials != 3 {
		t.Errorf("dials = %d, want 3", dials)
	}
	if f.pool.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.pool.Len())
	}
}

func TestPool_ProvisionFailureLeavesNoSlot(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	f.mc.FailNext("grant_zome_call_capability", 1)

	if _, _, err := f.pool.Get(context.Background(), f.recs["forum"]); err == nil {
		t.Fatal("expected error")
	}
	if f.pool.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.pool.Len())
	}

	if _, _, err := f.pool.Get(context.Background(), f.recs["forum"]); err != nil {
		t.Fatalf("retry Get() error = %v", err)
	}
}

func TestPool_EvictionClosesSlot(t *testing.T) {
	f := newFixture(t, 1, []string{"forum", "chat"})
	ctx := context.Background()

	forum, _, err := f.pool.Get(ctx, f.recs["forum"])
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.pool.Get(ctx, f.recs["chat"]); err != nil {
		t.Fatal(err)
	}

	if f.pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.pool.Len())
	}
	select {
	case <-forum.Conn.Done():
	case <-time.After(time.Second):
		t.Error("evicted slot was not closed")
	}

	again, created, err := f.pool.Get(ctx, f.recs["forum"])
	if err != nil {
		t.Fatal(err)
	}
	if !created || again == forum {
		t.Error("evicted app should get a new slot")
	}
}

func TestPool_ConcurrentGetSingleConnect(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	f.mc.SetDelay("grant_zome_call_capability", 30*time.Millisecond)

	var wg sync.WaitGroup
	slots := make([]*Slot, 10)
	for i := range slots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, _, err := f.pool.Get(context.Background(), f.recs["forum"])
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			slots[i] = slot
		}()
	}
	wg.Wait()

	for _, s := range slots[1:] {
		if s != slots[0] {
			t.Fatal("concurrent Get returned different slots")
		}
	}
	if got := f.mc.Count("app_connect"); got != 1 {
		t.Errorf("app_connect = %d, want 1", got)
	}
	if got := f.mc.Count("attach_app_interface"); got != 1 {
		t.Errorf("attach_app_interface = %d, want 1", got)
	}
}

func TestPool_CallReconnectsDeadSlot(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	ctx := context.Background()
	rec := f.recs["forum"]

	if err := f.pool.Call(ctx, rec, func(ctx context.Context, s *Slot) error {
		return callGetPosts(ctx, rec, s)
	}); err != nil {
		t.Fatalf("first Call() error = %v", err)
	}

	f.mc.DropConnections()

	calls := 0
	err := f.pool.Call(ctx, rec, func(ctx context.Context, s *Slot) error {
		calls++
		return callGetPosts(ctx, rec, s)
	})
	if err != nil {
		t.Fatalf("Call() after drop error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn ran %d times, want 2", calls)
	}
	if got := f.mc.Count("app_connect"); got != 2 {
		t.Errorf("app_connect = %d, want 2", got)
	}
}

func TestPool_CallDoesNotRetryOtherErrors(t *testing.T) {
	f := newFixture(t, 10, []string{"forum"})
	boom := errors.New("boom")

	calls := 0
	err := f.pool.Call(context.Background(), f.recs["forum"], func(context.Context, *Slot) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Errorf("Call() = %v after %d calls", err, calls)
	}
	if f.pool.Len() != 1 {
		t.Error("slot should survive a non-connection error")
	}
}

func TestPool_StalePortDroppedForAppBoundInterface(t *testing.T) {
	f := newFixture(t, 10, []string{"forum", "chat"})
	ctx := context.Background()

	first, _, err := f.pool.Get(ctx, f.recs["forum"])
	if err != nil {
		t.Fatalf("Get(forum) error = %v", err)
	}
	f.mc.CloseAppInterfaces()
	chat := "chat"
	bound := f.mc.AddAppInterface(conductor.AnyOrigin, &chat)

	slot, _, err := f.pool.Get(ctx, f.recs["chat"])
	if err != nil {
		t.Fatalf("Get(chat) error = %v", err)
	}
	if slot.Port != bound {
		t.Errorf("Port = %d, want app-bound port %d", slot.Port, bound)
	}
	if got := f.pool.CachedPort(); got != 0 {
		t.Errorf("CachedPort() = %d, want 0 after %d failed", got, first.Port)
	}
	if got := f.mc.Count("attach_app_interface"); got != 1 {
		t.Errorf("attach_app_interface = %d, want 1", got)
	}
}

func TestPool_CallRetriesNewSlot(t *testing.T) {
	tests := []struct {
		name      string
		warmCache bool
		wantCalls int
		wantErr   bool
	}{
		{name: "opened on cached port", warmCache: true, wantCalls: 2},
		{name: "opened on discovered port", warmCache: false, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10, []string{"forum", "chat"})
			ctx := context.Background()
			if tt.warmCache {
				if _, _, err := f.pool.Get(ctx, f.recs["forum"]); err != nil {
					t.Fatalf("Get(forum) error = %v", err)
				}
			}

			rec := f.recs["chat"]
			calls := 0
			err := f.pool.Call(ctx, rec, func(ctx context.Context, s *Slot) error {
				calls++
				if calls == 1 {
					f.mc.DropConnections()
				}
				return callGetPosts(ctx, rec, s)
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Call() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !conductor.IsDisconnect(err) {
				t.Errorf("Call() error = %v, want disconnect", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("fn ran %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}
