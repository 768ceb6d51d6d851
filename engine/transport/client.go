// Package transport maintains the WebSocket connection to the feed
// service. It owns dialing, the read loop and reconnection; decoded
// events are handed to the engine, which does all the interpretation.
package transport

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dealgraph/domain/events"
	"dealgraph/pkg/metrics"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1 << 20
	initialBackoff    = 500 * time.Millisecond
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2.0
)

// Handler receives connection lifecycle and decoded feed events. The
// engine implements this; calls arrive on the client's read goroutine.
type Handler interface {
	HandleFeedConnect()
	HandleFeedDisconnect(err error)
	HandleFeedMessage(msg events.FeedMessage)
}

// controlMessage is the client-to-server request envelope
type controlMessage struct {
	Action string `json:"action"`
}

// Options configures the feed client
type Options struct {
	URL       string
	AuthToken string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Client is the resilient feed connection. Run owns the connection;
// RequestSnapshot may be called from any goroutine and is a no-op while
// disconnected because reconnection itself triggers a snapshot.
type Client struct {
	opts    Options
	handler Handler
	logger  *zap.Logger
	metrics *metrics.Metrics

	// mu guards conn and serializes writes; gorilla permits only one
	// concurrent writer per connection.
	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a feed client. Run must be called to connect.
func New(opts Options, handler Handler) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:    opts,
		handler: handler,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Run dials and reads until ctx is canceled, reconnecting with jittered
// exponential backoff after any failure. The engine keeps showing the
// last-known-good graph between connections.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		c.handler.HandleFeedDisconnect(err)
		if c.metrics != nil {
			c.metrics.FeedDisconnects.Inc()
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)/4+1))
		c.logger.Warn("feed connection lost",
			zap.Error(err),
			zap.Duration("retry_in", sleep),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		backoff = time.Duration(float64(backoff) * backoffMultiplier)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if c.opts.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.AuthToken)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return err
	}

	c.setConn(conn)
	defer c.setConn(nil)
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.logger.Info("feed connected", zap.String("url", c.opts.URL))
	if c.metrics != nil {
		c.metrics.FeedConnects.Inc()
	}
	c.handler.HandleFeedConnect()

	// Keepalive pings; the read loop below detects the dead peer via
	// the read deadline.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg events.FeedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("undecodable feed message skipped",
				zap.Int("bytes", len(raw)),
				zap.Error(err),
			)
			continue
		}
		if !msg.Type.Valid() {
			// Housekeeping frames carry no sequence number and must
			// never reach the reconciler's gap detection.
			c.logger.Debug("non-event frame skipped", zap.String("type", string(msg.Type)))
			continue
		}
		c.handler.HandleFeedMessage(msg)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// RequestSnapshot asks the server for a full graph_replace. Satisfies
// the reconciler's recovery hook.
func (c *Client) RequestSnapshot() {
	c.mu.Lock()
	conn := c.conn
	var err error
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteJSON(controlMessage{Action: "request_snapshot"})
	}
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("snapshot request skipped while disconnected")
		return
	}
	if err != nil {
		c.logger.Warn("snapshot request failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.SnapshotRequests.Inc()
	}
}
