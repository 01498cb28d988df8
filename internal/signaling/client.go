package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned by Send when the relay socket is not open.
// Callers are expected to drop the envelope and log, not to abort.
var ErrUnavailable = errors.New("signaling: relay connection not open")

// Client maintains the WebSocket connection to the signaling relay. Inbound
// envelopes are dispatched to a single handler; outbound sends are serialized
// with a mutex. On unexpected closure the client reconnects with a bounded
// backoff policy and replays the connect hook so the caller can re-announce
// its display info.
type Client struct {
	url    string
	log    *logrus.Logger
	policy ReconnectPolicy

	handler   func(Envelope)
	onConnect func()

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	done chan struct{}
}

// Dial connects to the relay at baseURL (e.g. ws://host:port) under the given
// peer identity. The caller must register handlers and then call Start.
func Dial(ctx context.Context, baseURL, peerID string, policy ReconnectPolicy, log *logrus.Logger) (*Client, error) {
	c := &Client{
		url:    fmt.Sprintf("%s/api/ws/%s", baseURL, peerID),
		log:    log,
		policy: policy,
		done:   make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	c.conn = conn

	return c, nil
}

// OnEnvelope registers the handler invoked for every inbound relay envelope.
// It must be called before Start.
func (c *Client) OnEnvelope(fn func(Envelope)) {
	c.handler = fn
}

// OnConnect registers a hook invoked after every successful (re)connection,
// including the initial one once Start runs.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// Start launches the read loop.
func (c *Client) Start() {
	go c.readLoop()
}

// Send writes an envelope to the relay. When the socket is not open the
// envelope is dropped and ErrUnavailable returned.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrUnavailable
	}
	return c.conn.WriteJSON(env)
}

// Close shuts the connection down and stops the read loop without triggering
// reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Done is closed when the client has shut down for good, either via Close or
// after exhausting reconnection attempts.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	if c.onConnect != nil {
		c.onConnect()
	}

	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.log.Warnf("Relay connection lost: %v", err)
			if !c.reconnect() {
				return
			}
			continue
		}

		if c.handler != nil {
			c.handler(env)
		}
	}
}

// reconnect retries the relay connection per the backoff policy. It reports
// whether a connection was re-established.
func (c *Client) reconnect() bool {
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		delay := c.policy.Delay(attempt)
		c.log.Infof("Reconnecting to relay in %s (attempt %d/%d)", delay, attempt+1, c.policy.MaxAttempts)

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warnf("Reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return false
		}
		c.conn = conn
		c.mu.Unlock()

		c.log.Info("Relay connection re-established")
		if c.onConnect != nil {
			c.onConnect()
		}
		return true
	}

	c.log.Errorf("Giving up on relay after %d reconnect attempts", c.policy.MaxAttempts)
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
	return false
}
