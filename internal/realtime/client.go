// Package realtime wraps a gorilla websocket as a presence.Conn.
//
// Each Client runs two goroutines: a write pump that owns every data write
// and sends periodic pings, and a read pump (the caller of Serve) that keeps
// the read deadline fresh and answers keep-alive frames.
package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var (
	// ErrClosed is returned by Send after the client has shut down.
	ErrClosed = errors.New("realtime: connection closed")
	// ErrBufferFull is returned by Send when the outbound queue is full.
	ErrBufferFull = errors.New("realtime: send buffer full")
)

// Options configures Upgrade.
type Options struct {
	// AllowedOrigins lists the Origin header values accepted on upgrade.
	// Requests without an Origin header are always accepted.
	AllowedOrigins []string
	// BufferSize is the number of frames queued per client. Default 256.
	BufferSize int
	Logger     *slog.Logger
}

// Client is one user's live websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

// Upgrade switches the request to the websocket protocol and returns a Client
// for userID. On failure the upgrader has already written an HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request, userID uuid.UUID, opts Options) (*Client, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(opts.AllowedOrigins, origin) || slices.Contains(opts.AllowedOrigins, "*")
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, userID, opts), nil
}

// NewClient wraps an established websocket connection.
func NewClient(conn *websocket.Conn, userID uuid.UUID, opts Options) *Client {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		conn: conn,
		send: make(chan []byte, opts.BufferSize),
		done: make(chan struct{}),
		log:  opts.Logger.With("user_id", userID),
	}
}

// Send queues payload for the write pump. It never blocks.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Close sends a close frame and tears down the connection. It is safe to call
// more than once and from any goroutine.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Serve runs the connection until the peer goes away or Close is called.
// It blocks in the read loop and closes the client before returning.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	f, err := notify.Decode(data)
	if err != nil {
		c.log.Debug("ignoring inbound frame", "error", err)
		return
	}
	switch f.(type) {
	case notify.Ping:
		pong, err := notify.Encode(notify.Pong{})
		if err != nil {
			return
		}
		if err := c.Send(pong); err != nil {
			c.log.Debug("pong not queued", "error", err)
		}
	default:
		c.log.Debug("ignoring inbound frame", "type", f.Type())
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
