package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/combatsim/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	frameBuffer  = 10_000
	ackBuffer    = 16
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
	dialTimeout  = 5 * time.Second
	closeTimeout = time.Second
)

var errConnClosed = errors.New("connection closed")

// retryPolicy bounds reconnection attempts with doubling backoff.
type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

var defaultRetry = retryPolicy{attempts: 10, initial: time.Second, max: 30 * time.Second}

func (p retryPolicy) next(d time.Duration) time.Duration {
	return min(d*2, p.max)
}

// connection owns one viewer socket. Frames go through a single writer
// goroutine; acks are read by a single reader goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	detach chan struct{} // closed when conn is replaced
	closed bool

	frames chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}

	target *url.URL
	dialer *ws.Dialer
	retry  retryPolicy

	// start_run followed by every add_unit of the current run; replayed in
	// order after a reconnect so the viewer can rebuild its unit roster.
	roster [][]byte

	dropped atomic.Uint64
	log     *slog.Logger
}

func newConnection(log *slog.Logger) *connection {
	return &connection{
		frames: make(chan []byte, frameBuffer),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		done:   make(chan struct{}),
		dialer: &ws.Dialer{HandshakeTimeout: dialTimeout},
		retry:  defaultRetry,
		log:    log,
	}
}

// open connects to rawURL, passing secret as a query parameter.
func (c *connection) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	c.target = u

	conn, err := c.connect()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) connect() (*ws.Conn, error) {
	conn, _, err := c.dialer.Dial(c.target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach installs conn and starts its reader and writer.
func (c *connection) attach(conn *ws.Conn) {
	detach := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.detach = detach
	c.mu.Unlock()

	go c.writer(conn, detach)
	go c.reader(conn)
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) writer(conn *ws.Conn, detach <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-detach:
			return
		case data := <-c.frames:
			if err := writeFrame(conn, data); err != nil {
				c.dropped.Add(1)
				c.log.Warn("WebSocket write failed", "error", err)
				go c.recover(conn)
				return
			}
		}
	}
}

func (c *connection) reader(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.log.Warn("WebSocket read failed", "error", err)
			go c.recover(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.log.Debug("Ignoring viewer message", "raw", string(message))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.log.Debug("Ack buffer full", "for", ack.For)
		}
	}
}

func (c *connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recover replaces a failed socket. Only the first caller for a given
// socket reconnects; the reader and writer both report the same failure.
func (c *connection) recover(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.detach)
	c.mu.Unlock()
	_ = failed.Close()

	wait := c.retry.initial
	for attempt := 1; attempt <= c.retry.attempts; attempt++ {
		c.log.Info("Reconnecting to viewer", "attempt", attempt, "backoff", wait)
		if !c.sleep(wait) {
			return
		}

		conn, err := c.connect()
		if err != nil {
			c.log.Warn("Reconnect failed", "attempt", attempt, "error", err)
			wait = c.retry.next(wait)
			continue
		}
		if err := c.replay(conn); err != nil {
			c.log.Warn("Roster replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			wait = c.retry.next(wait)
			continue
		}

		c.log.Info("Viewer reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}
	c.log.Error("Giving up on viewer connection", "attempts", c.retry.attempts)
}

// sleep waits d unless the connection closes first.
func (c *connection) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	}
}

func (c *connection) replay(conn *ws.Conn) error {
	c.mu.Lock()
	roster := c.roster
	c.mu.Unlock()

	for _, data := range roster {
		if err := writeFrame(conn, data); err != nil {
			return err
		}
	}
	return nil
}

// remember appends a frame to the replay roster. reset starts a new roster.
func (c *connection) remember(data []byte, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reset {
		c.roster = nil
	}
	c.roster = append(c.roster, data)
}

func (c *connection) forget() {
	c.mu.Lock()
	c.roster = nil
	c.mu.Unlock()
}

// send queues a frame without blocking. Frames are dropped when the buffer
// is full.
func (c *connection) send(data []byte) {
	select {
	case c.frames <- data:
	default:
		if c.dropped.Add(1) == 1 {
			c.log.Warn("WebSocket send buffer full, dropping frames")
		}
	}
}

// request sends a frame and waits for the viewer to ack its type.
func (c *connection) request(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errConnClosed)
		}
	}
}

// close sends a close frame and stops the reader, writer and any reconnect.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	return conn.Close()
}
