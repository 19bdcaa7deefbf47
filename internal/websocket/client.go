package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	relay_errors "bucketstream/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ClientOptions tunes keepalive for a subscriber connection. Zero values fall
// back to the package defaults.
type ClientOptions struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.PongWait <= 0 {
		o.PongWait = pongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = pingPeriod
		if o.PingPeriod >= o.PongWait {
			o.PingPeriod = (o.PongWait * 9) / 10
		}
	}
	return o
}

// Client wraps a gorilla websocket connection as a registry Connection.
// Data frames are written by one sender at a time; pings go through
// WriteControl, which gorilla allows concurrently with other writes.
type Client struct {
	id   string
	conn *websocket.Conn
	opts ClientOptions
	log  *Logger

	sem       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewClient(conn *websocket.Conn, opts ClientOptions, log *Logger) *Client {
	if log == nil {
		log = NewLogger(nil)
	}
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		opts: opts.withDefaults(),
		log:  log,
		sem:  make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send writes msg as a single text frame. It waits for any in-flight write to
// finish, bounded by ctx, and uses ctx's deadline as the write deadline.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return relay_errors.ErrConnectionClosed
	}
	defer func() { <-c.sem }()

	select {
	case <-c.done:
		return relay_errors.ErrConnectionClosed
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadLoop consumes inbound frames until the peer goes away or the read
// deadline lapses. Application pings are answered with a pong message.
func (c *Client) ReadLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read_failed", c.id, zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		if in.Type == TypePing {
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.Send(ctx, encodePong(time.Now()))
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// PingLoop sends protocol pings until the client is closed.
func (c *Client) PingLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("ping_failed", c.id, zap.Error(err))
				_ = c.Close()
				return
			}
		}
	}
}
