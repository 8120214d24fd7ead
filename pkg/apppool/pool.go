package apppool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/directory"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/signing"
	"hchttp/gateway/pkg/telemetry/metrics"
)

// Admin is the control-plane surface the pool needs.
// *adminlink.Link implements it.
type Admin interface {
	ListAppInterfaces(ctx context.Context) ([]conductor.AppInterfaceInfo, error)
	AttachAppInterface(ctx context.Context, origin string, appID *string) (uint16, error)
	IssueAppAuthenticationToken(ctx context.Context, appID string) ([]byte, error)
	signing.Authorizer
}

// AppDialer dials and authenticates an app interface.
type AppDialer func(ctx context.Context, url string, opts conductor.DialOptions, token []byte) (*conductor.AppClient, error)

// attempt is a step of the connection state machine.
type attempt int

const (
	useCachedPort attempt = iota
	rediscoverPort
	giveUp
)

// dialError marks a failure to reach the app interface, as opposed to a
// control-plane failure.
type dialError struct {
	err error
}

func (e *dialError) Error() string { return e.err.Error() }
func (e *dialError) Unwrap() error { return e.err }

// Option configures a Pool.
type Option func(*Pool)

// WithAppDialer replaces the app websocket dialer.
func WithAppDialer(d AppDialer) Option {
	return func(p *Pool) {
		p.dialApp = d
	}
}

// WithMetrics records pool activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pool) {
		p.metrics = c
	}
}

// Pool is a bounded set of app connections keyed by app id.
// It is safe for concurrent use.
type Pool struct {
	admin          Admin
	allow          *config.AllowList
	provisioner    *signing.Provisioner
	dialApp        AppDialer
	host           string
	origin         string
	connectTimeout time.Duration
	metrics        *metrics.Collector
	logger         *slog.Logger

	mu    sync.Mutex
	slots *simplelru.LRU[string, *Slot]
	port  uint16

	group singleflight.Group
}

// New creates a pool holding at most limits.MaxAppConnections slots. App
// interfaces are dialed on the host of the admin URL.
func New(cc config.ConductorConfig, limits config.LimitsConfig, admin Admin, allow *config.AllowList, opts ...Option) (*Pool, error) {
	u, err := url.Parse(cc.AdminWSURL)
	if err != nil {
		return nil, fmt.Errorf("parse admin url: %w", err)
	}

	p := &Pool{
		admin:          admin,
		allow:          allow,
		dialApp:        conductor.DialApp,
		host:           u.Hostname(),
		origin:         cc.Origin,
		connectTimeout: cc.ConnectTimeout,
		logger:         slog.Default().With("component", "apppool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.provisioner = signing.NewProvisioner(admin, p.metrics)

	p.slots, err = simplelru.NewLRU[string, *Slot](limits.MaxAppConnections, func(_ string, slot *Slot) {
		slot.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return p, nil
}

// Len returns the number of open slots.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots.Len()
}

// CachedPort returns the cached app interface port, or 0.
func (p *Pool) CachedPort() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

func (p *Pool) setPort(port uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.port = port
}

// dropPort forgets port if it is still the cached one.
func (p *Pool) dropPort(port uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == port {
		p.port = 0
	}
}

// Close closes every slot.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots.Purge()
	p.metrics.SetPoolSize(0)
}

// Get returns the slot for rec, opening one if needed. created reports
// whether the slot was opened to serve this call.
func (p *Pool) Get(ctx context.Context, rec *directory.AppRecord) (*Slot, bool, error) {
	return p.get(ctx, rec, useCachedPort)
}

type getResult struct {
	slot    *Slot
	created bool
}

func (p *Pool) get(ctx context.Context, rec *directory.AppRecord, start attempt) (*Slot, bool, error) {
	if slot, ok := p.lookup(rec.AppID); ok {
		return slot, false, nil
	}

	ch := p.group.DoChan(rec.AppID, func() (any, error) {
		if slot, ok := p.lookup(rec.AppID); ok {
			return getResult{slot: slot}, nil
		}
		slot, err := p.connect(context.WithoutCancel(ctx), rec, start)
		if err != nil {
			return nil, err
		}
		p.insert(slot)
		return getResult{slot: slot, created: true}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(getResult)
		return r.slot, r.created, nil
	case <-ctx.Done():
		return nil, false, gwerrors.Conductor(ctx.Err(), "connect to app %q", rec.AppID)
	}
}

func (p *Pool) lookup(appID string) (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots.Get(appID)
}

// insert adds slot, evicting and closing the least recently used slot when
// the pool is full.
func (p *Pool) insert(slot *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.slots.Peek(slot.AppID); ok && old != slot {
		p.slots.Remove(slot.AppID)
	}
	if evicted := p.slots.Add(slot.AppID, slot); evicted {
		p.metrics.RecordPoolEviction()
	}
	p.metrics.SetPoolSize(p.slots.Len())
}

// remove closes slot and drops it if it is still the current slot for its app.
func (p *Pool) remove(slot *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.slots.Peek(slot.AppID); ok && cur == slot {
		p.slots.Remove(slot.AppID)
	}
	slot.Close()
	p.metrics.SetPoolSize(p.slots.Len())
}

// connect runs the connection state machine starting at start.
func (p *Pool) connect(ctx context.Context, rec *directory.AppRecord, start attempt) (*Slot, error) {
	state := start
	if state == useCachedPort && p.CachedPort() == 0 {
		state = rediscoverPort
	}

	var lastErr error
	for state != giveUp {
		var port uint16
		if state == useCachedPort {
			port = p.CachedPort()
		} else {
			var err error
			port, err = p.discoverPort(ctx, rec.AppID)
			if err != nil {
				lastErr = err
				break
			}
		}

		slot, err := p.open(ctx, rec, port)
		p.metrics.RecordPoolConnect(metrics.Result(err))
		if err == nil {
			slot.fromCache = state == useCachedPort
			return slot, nil
		}
		lastErr = err

		var de *dialError
		if !errors.As(err, &de) {
			break
		}
		p.logger.Warn("app interface dial failed", "app_id", rec.AppID, "port", port, "error", err)
		if state == useCachedPort {
			p.dropPort(port)
			state = rediscoverPort
		} else {
			state = giveUp
		}
	}
	return nil, gwerrors.Conductor(lastErr, "connect to app %q", rec.AppID)
}

// discoverPort finds an app interface usable by appID with the gateway's
// origin, attaching a new one if none exists. App-agnostic ports are cached.
func (p *Pool) discoverPort(ctx context.Context, appID string) (uint16, error) {
	ifaces, err := p.admin.ListAppInterfaces(ctx)
	if err != nil {
		return 0, err
	}
	for _, iface := range ifaces {
		if iface.AllowedOrigins.Permits(p.origin) && iface.ServesApp(appID) {
			if iface.InstalledAppID == nil {
				p.setPort(iface.Port)
			}
			return iface.Port, nil
		}
	}

	port, err := p.admin.AttachAppInterface(ctx, p.origin, nil)
	if err != nil {
		return 0, err
	}
	p.logger.Info("attached app interface", "port", port)
	p.setPort(port)
	return port, nil
}

// open authenticates a connection to port and provisions credentials for
// every cell of rec. Nothing is left open on failure.
func (p *Pool) open(ctx context.Context, rec *directory.AppRecord, port uint16) (*Slot, error) {
	token, err := p.admin.IssueAppAuthenticationToken(ctx, rec.AppID)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	wsURL := "ws://" + net.JoinHostPort(p.host, strconv.Itoa(int(port)))
	conn, err := p.dialApp(dialCtx, wsURL, conductor.DialOptions{
		Origin:           p.origin,
		HandshakeTimeout: p.connectTimeout,
	}, token)
	if err != nil {
		return nil, &dialError{err: err}
	}

	signer := signing.NewSigner()
	fns, _ := p.allow.FunctionsFor(rec.AppID)
	if err := p.provisioner.ProvisionAll(ctx, signer, rec.CellIDs(), signing.GrantedFunctions(fns)); err != nil {
		conn.Close()
		return nil, err
	}

	p.logger.Debug("opened app connection", "app_id", rec.AppID, "port", port, "cells", signer.Len())
	return &Slot{
		AppID:     rec.AppID,
		Port:      port,
		Conn:      conn,
		Signer:    signer,
		CreatedAt: time.Now(),
	}, nil
}

// Call runs fn against the slot for rec. If fn fails because the socket of
// an existing slot, or of a new slot opened on the cached port, has died,
// the slot is replaced once through port rediscovery and fn retried.
func (p *Pool) Call(ctx context.Context, rec *directory.AppRecord, fn func(ctx context.Context, slot *Slot) error) error {
	slot, created, err := p.Get(ctx, rec)
	if err != nil {
		return err
	}

	err = fn(ctx, slot)
	if err == nil || !conductor.IsDisconnect(err) {
		return err
	}
	p.remove(slot)
	if created && !slot.fromCache {
		return err
	}
	if created {
		p.dropPort(slot.Port)
	}

	p.logger.Info("app connection lost, reconnecting", "app_id", rec.AppID, "error", err)
	slot, _, err = p.get(ctx, rec, rediscoverPort)
	if err != nil {
		return err
	}
	return fn(ctx, slot)
}
