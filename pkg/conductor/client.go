package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// DialOptions configures a websocket dial.
type DialOptions struct {
	// Origin is sent as the Origin header. The conductor checks it against
	// the interface's allowed origins.
	Origin string

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
}

// Client is a request/response multiplexer over a conductor websocket.
// It is safe for concurrent use.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan []byte
	err     error

	nextID    atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a websocket to the conductor and starts its read loop.
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	header := http.Header{}
	if opts.Origin != "" {
		header.Set("Origin", opts.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  slog.Default().With("component", "conductor.client", "url", url),
		pending: make(map[uint64]chan []byte),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

// Request sends a request of the given type and decodes the response value
// into out. A conductor error response is returned as *APIError.
func (c *Client) Request(ctx context.Context, reqType string, value any, respType string, out any) error {
	inner, err := msgpack.Marshal(&Envelope{Type: reqType, Value: value})
	if err != nil {
		return fmt.Errorf("encode %s: %w", reqType, err)
	}

	id := c.nextID.Add(1)
	ch := make(chan []byte, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, WireMessage{Type: wireRequest, ID: id, Data: inner}); err != nil {
		return err
	}

	select {
	case data := <-ch:
		if data == nil {
			return fmt.Errorf("%s: empty response", reqType)
		}
		return decodeResponse(data, respType, out)
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authenticate sends an authentication message. The conductor does not
// answer it; an invalid token makes it close the socket.
func (c *Client) Authenticate(ctx context.Context, payload any) error {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode authenticate: %w", err)
	}
	return c.write(ctx, WireMessage{Type: wireAuthenticate, Data: data})
}

func (c *Client) write(ctx context.Context, m WireMessage) error {
	frame, err := EncodeWire(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.shutdown(err)
		return c.Err()
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		msg, err := DecodeWire(data)
		if err != nil {
			c.logger.Warn("dropping undecodable message", "error", err)
			continue
		}

		switch msg.Type {
		case wireResponse:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if !ok {
				c.logger.Debug("response for unknown request", "id", msg.ID)
				continue
			}
			ch <- msg.Data
		case wireSignal:
			// Signals are not forwarded over HTTP.
		default:
			c.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

// shutdown marks the client broken. Pending requests observe done.
func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = fmt.Errorf("%w: %v", ErrDisconnected, cause)
		c.mu.Unlock()

		close(c.done)
		c.conn.Close()
	})
}

// Err returns the terminal error, or nil while the client is usable.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	if c.Err() != nil {
		return nil
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	c.shutdown(errClosed)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

var errClosed = errors.New("closed by client")
