package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicebridge-ai/voicebridge/logger"
)

// WebSocket transport constants.
const (
	wsDialTimeout      = 10 * time.Second
	wsWriteWait        = 10 * time.Second
	wsMaxMessageSize   = 64 * 1024 * 1024 // audio deltas can be large
	wsCloseGracePeriod = 5 * time.Second
)

// Conn is one physical WebSocket connection to the upstream service.
// Writes are serialized; reads are single-consumer. Reconnection replaces
// a Conn, it never reuses one.
type Conn struct {
	url        string
	credential string
	headers    http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	closeChan chan struct{}
}

// NewConn creates an unconnected Conn for the given endpoint. credential
// is sent as a bearer token; extra headers are merged into the handshake.
func NewConn(url, credential string, headers http.Header) *Conn {
	return &Conn{
		url:        url,
		credential: credential,
		headers:    headers,
		closeChan:  make(chan struct{}),
	}
}

// Dial establishes the WebSocket connection.
func (c *Conn) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	headers := http.Header{}
	for k, vs := range c.headers {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}
	if c.credential != "" {
		headers.Set("Authorization", "Bearer "+c.credential)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsDialTimeout}

	logger.Debug("dialing upstream", "url", c.url)

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			logger.Error("upstream dial failed", "error", err, "status", resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	conn.SetReadLimit(wsMaxMessageSize)
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set read deadline: %w", err)
	}

	c.conn = conn
	return nil
}

// Send marshals and writes one client event.
func (c *Conn) Send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive reads one raw message, honoring context cancellation.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		_, data, err := conn.ReadMessage()
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.data, result.err
	}
}

// ReceiveLoop reads messages into msgCh until the connection closes or
// ctx is done. A normal close returns nil.
func (c *Conn) ReceiveLoop(ctx context.Context, msgCh chan<- []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeChan:
			return nil
		default:
		}

		data, err := c.Receive(ctx)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		select {
		case msgCh <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeChan:
			return nil
		}
	}
}

// StartHeartbeat pings the connection at the given interval until it
// closes or ctx is done.
func (c *Conn) StartHeartbeat(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closeChan:
				return
			case <-ticker.C:
				if !c.sendPing() {
					return
				}
			}
		}
	}()
}

// sendPing writes one ping frame. Returns false when the heartbeat
// should stop.
func (c *Conn) sendPing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		return false
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		logger.Warn("heartbeat write deadline failed", "error", err)
		return true
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		logger.Warn("heartbeat ping failed", "error", err)
		return false
	}
	return true
}

// Close sends a close frame and tears down the connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeChan)

	if c.conn == nil {
		return nil
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsCloseGracePeriod))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)

	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
