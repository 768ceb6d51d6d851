package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/events"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []events.FeedMessage
}

func (h *recordingHandler) HandleFeedConnect() {}

func (h *recordingHandler) HandleFeedDisconnect(err error) {}

func (h *recordingHandler) HandleFeedMessage(msg events.FeedMessage) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
}

func (h *recordingHandler) received() []events.FeedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.FeedMessage(nil), h.messages...)
}

func marshalMessage(t *testing.T, msg events.FeedMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestClient_OnlyEventFramesReachTheHandler(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"type":"ping"}`),
		marshalMessage(t, events.FeedMessage{Seq: 1, Type: events.EventGraphReplace, Snapshot: &events.SnapshotPayload{
			Nodes: []events.CompanyPayload{{ID: "a", Label: "a"}},
		}}),
		[]byte(`{"type":"ping"}`),
		marshalMessage(t, events.FeedMessage{Seq: 2, Type: events.EventNodeAdded, Node: &events.CompanyPayload{ID: "b", Label: "b"}}),
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
		}
		// Keep the connection open so the client does not reconnect
		// and see the frames a second time.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	client := New(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	require.Eventually(t, func() bool {
		return len(handler.received()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got := handler.received()
	assert.Equal(t, events.EventGraphReplace, got[0].Type)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, events.EventNodeAdded, got[1].Type)
	assert.Equal(t, uint64(2), got[1].Seq)
}
