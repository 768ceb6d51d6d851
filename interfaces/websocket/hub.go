// Package websocket serves the live update feed. Every dashboard sees
// the same graph, so the hub broadcasts to all connections; sequence
// numbers are assigned by the hub loop, which makes it the single
// ordering authority for the stream.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dealgraph/domain/events"
	"dealgraph/pkg/metrics"
)

// SnapshotProvider builds the current full-graph payload, used both for
// new connections and for explicit resync requests.
type SnapshotProvider func() *events.SnapshotPayload

// Hub maintains active WebSocket connections and fans feed messages out
// to all of them
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// publish carries unsequenced messages; the hub loop stamps each
	// with the next sequence number before fan-out.
	publish     chan events.FeedMessage
	snapshotReq chan *Client

	seq       atomic.Uint64
	snapshots SnapshotProvider

	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub. The snapshot provider must be non-nil so that
// joining clients always start from a complete graph.
func NewHub(snapshots SnapshotProvider, logger *zap.Logger, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		publish:     make(chan events.FeedMessage, 1000),
		snapshotReq: make(chan *Client, 100),
		snapshots:   snapshots,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		metrics:     m,
	}
}

// Run starts the hub's main event loop. Connection liveness is the
// write pump's job (protocol pings plus read deadlines); the hub only
// ever writes feed messages to the stream.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.publish:
			msg.Seq = h.seq.Add(1)
			h.broadcastToAll(msg)

		case client := <-h.snapshotReq:
			h.sendSnapshot(client)
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.logger.Info("stopping websocket hub")
	h.cancel()
}

// Publish queues a feed message for broadcast. The hub assigns the
// sequence number, so callers must leave Seq zero.
func (h *Hub) Publish(msg events.FeedMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case h.publish <- msg:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("hub is shut down")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish channel full, message dropped")
	}
}

// registerClient adds a connection and immediately seeds it with a full
// snapshot so it never renders a partial graph
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	h.logger.Info("client registered",
		zap.String("connection_id", client.id),
		zap.Int("total_connections", total),
	)

	h.sendSnapshot(client)
}

// unregisterClient removes a client connection
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	h.logger.Info("client unregistered",
		zap.String("connection_id", client.id),
		zap.Int("remaining_connections", len(h.clients)),
	)
}

// sendSnapshot delivers a graph_replace to one client. It carries the
// hub's current sequence number rather than consuming a new one, so
// the rest of the audience sees no gap.
func (h *Hub) sendSnapshot(client *Client) {
	msg := events.FeedMessage{
		Seq:       h.seq.Load(),
		Type:      events.EventGraphReplace,
		Timestamp: time.Now().UTC(),
		Snapshot:  h.snapshots(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	h.deliver(client, data)
}

// broadcastToAll fans one sequenced message out to every connection
func (h *Hub) broadcastToAll(msg events.FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal feed message",
			zap.Error(err),
			zap.String("type", string(msg.Type)),
		)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent, failed := 0, 0
	for _, client := range clients {
		if h.deliver(client, data) {
			sent++
		} else {
			failed++
		}
	}

	h.logger.Debug("broadcast complete",
		zap.Uint64("seq", msg.Seq),
		zap.String("type", string(msg.Type)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
}

// deliver enqueues to one client, evicting it when its buffer is full.
// A full buffer means the client stopped reading; cutting it forces a
// clean reconnect-and-snapshot instead of an ever-growing backlog.
func (h *Hub) deliver(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		if h.metrics != nil {
			h.metrics.MessagesSent.Inc()
		}
		return true
	default:
		if h.metrics != nil {
			h.metrics.MessagesFailed.Inc()
		}
		h.logger.Warn("evicting slow client",
			zap.String("connection_id", client.id),
		)
		go func(c *Client) {
			c.hub.unregister <- c
			c.conn.Close()
		}(client)
		return false
	}
}

// closeAllConnections closes all active connections during shutdown
func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
	h.logger.Info("all connections closed")
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the last sequence number assigned to a broadcast
func (h *Hub) Seq() uint64 {
	return h.seq.Load()
}
