package adminlink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/telemetry/metrics"
)

// TokenExpirySeconds is the lifetime of app authentication tokens the link
// requests. Tokens are used immediately after issue.
const TokenExpirySeconds = 30

// ErrClosed is returned by operations on a closed link.
var ErrClosed = errors.New("admin link closed")

// AdminConn is the set of admin operations the link needs.
// *conductor.AdminClient implements it.
type AdminConn interface {
	ListApps(ctx context.Context, filter *conductor.AppStatus) ([]conductor.AppInfo, error)
	ListAppInterfaces(ctx context.Context) ([]conductor.AppInterfaceInfo, error)
	AttachAppInterface(ctx context.Context, payload conductor.AttachAppInterfacePayload) (uint16, error)
	IssueAppAuthenticationToken(ctx context.Context, payload conductor.IssueAppAuthenticationTokenPayload) (conductor.AppAuthenticationTokenIssued, error)
	GrantZomeCallCapability(ctx context.Context, payload conductor.GrantZomeCallCapabilityPayload) error
	Close() error
}

// Dialer opens a new admin connection.
type Dialer func(ctx context.Context) (AdminConn, error)

// State is the lifecycle state of the admin connection.
type State int

const (
	StateUninitialized State = iota
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Option configures a Link.
type Option func(*Link)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(l *Link) {
		l.dialer = d
	}
}

// WithMetrics records reconnect attempts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Link) {
		l.metrics = c
	}
}

// Link is a lazily connected, self-healing admin connection.
// It is safe for concurrent use.
type Link struct {
	dialer         Dialer
	connectTimeout time.Duration
	requestTimeout time.Duration
	metrics        *metrics.Collector
	logger         *slog.Logger

	mu     sync.Mutex
	conn   AdminConn
	state  State
	closed bool

	group singleflight.Group
}

// New creates a link for the conductor described by cfg. No connection is
// made until the first operation.
func New(cfg config.ConductorConfig, opts ...Option) *Link {
	l := &Link{
		connectTimeout: cfg.ConnectTimeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         slog.Default().With("component", "adminlink"),
	}
	l.dialer = func(ctx context.Context) (AdminConn, error) {
		c, err := conductor.DialAdmin(ctx, cfg.AdminWSURL, conductor.DialOptions{
			Origin:           cfg.Origin,
			HandshakeTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close closes the current connection. Later operations fail with ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// connection returns the live connection, dialing if there is none.
func (l *Link) connection(ctx context.Context) (AdminConn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if conn := l.conn; conn != nil {
		l.mu.Unlock()
		return conn, nil
	}
	l.mu.Unlock()

	return l.dial(ctx)
}

// dial establishes a connection. Concurrent callers share one dial, which
// runs detached from the first caller's cancellation.
func (l *Link) dial(ctx context.Context) (AdminConn, error) {
	ch := l.group.DoChan("connect", func() (any, error) {
		l.mu.Lock()
		if conn := l.conn; conn != nil {
			l.mu.Unlock()
			return conn, nil
		}
		l.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.connectTimeout)
		defer cancel()
		conn, err := l.dialer(dialCtx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = StateFailed
			return nil, err
		}
		if l.closed {
			conn.Close()
			return nil, ErrClosed
		}
		l.conn = conn
		l.state = StateConnected
		l.logger.Info("connected to conductor admin interface")
		return conn, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(AdminConn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// invalidate drops conn if it is still the current connection.
func (l *Link) invalidate(conn AdminConn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != conn {
		return
	}
	l.conn = nil
	l.state = StateReconnecting
	conn.Close()
}

func (l *Link) call(ctx context.Context, conn AdminConn, fn func(context.Context, AdminConn) error) error {
	if l.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.requestTimeout)
		defer cancel()
	}
	return fn(ctx, conn)
}

// do runs fn on the current connection, reconnecting and retrying once if
// the connection turns out to be dead.
func (l *Link) do(ctx context.Context, op string, fn func(context.Context, AdminConn) error) error {
	conn, err := l.connection(ctx)
	if err != nil {
		return gwerrors.Conductor(err, "connect to conductor admin interface")
	}

	err = l.call(ctx, conn, fn)
	if err == nil {
		return nil
	}
	if !conductor.IsDisconnect(err) {
		return gwerrors.Conductor(err, "admin %s", op)
	}

	l.logger.Warn("admin connection lost, reconnecting", "op", op, "error", err)
	l.invalidate(conn)

	conn, err = l.dial(ctx)
	l.metrics.RecordAdminReconnect(metrics.Result(err))
	if err != nil {
		return gwerrors.Conductor(err, "reconnect to conductor admin interface")
	}

	if err := l.call(ctx, conn, fn); err != nil {
		if conductor.IsDisconnect(err) {
			l.invalidate(conn)
		}
		return gwerrors.Conductor(err, "admin %s", op)
	}
	return nil
}
