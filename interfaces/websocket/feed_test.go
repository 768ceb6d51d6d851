package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/events"
	"dealgraph/pkg/auth"
)

func startFeed(t *testing.T, jwtService *auth.JWTService) (*Server, *httptest.Server) {
	t.Helper()

	snapshots := func() *events.SnapshotPayload {
		return &events.SnapshotPayload{
			Nodes: []events.CompanyPayload{{ID: "helios", Label: "Helios Systems"}},
		}
	}
	hub := NewHub(snapshots, nil, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := NewServer(hub, jwtService, nil, nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleFeed))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + query
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) events.FeedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg events.FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.True(t, msg.Type.Valid(), "the feed stream must carry only event frames")
	return msg
}

func TestFeed_SnapshotOnConnect(t *testing.T) {
	_, ts := startFeed(t, nil)
	conn := dial(t, ts, "")

	msg := readMessage(t, conn)
	assert.Equal(t, events.EventGraphReplace, msg.Type)
	require.NotNil(t, msg.Snapshot)
	require.Len(t, msg.Snapshot.Nodes, 1)
	assert.Equal(t, "helios", msg.Snapshot.Nodes[0].ID)
}

func TestFeed_BroadcastIsSequenced(t *testing.T) {
	srv, ts := startFeed(t, nil)
	conn := dial(t, ts, "")

	first := readMessage(t, conn)
	require.Equal(t, events.EventGraphReplace, first.Type)

	hub := srv.Hub()
	require.NoError(t, hub.Publish(events.FeedMessage{
		Type: events.EventNodeAdded,
		Node: &events.CompanyPayload{ID: "quantum", Label: "Quantum Forge"},
	}))
	require.NoError(t, hub.Publish(events.FeedMessage{
		Type:   events.EventNodeRemoved,
		NodeID: "quantum",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, events.EventNodeAdded, msg.Type)
	assert.Equal(t, first.Seq+1, msg.Seq)

	msg = readMessage(t, conn)
	assert.Equal(t, events.EventNodeRemoved, msg.Type)
	assert.Equal(t, first.Seq+2, msg.Seq)
}

func TestFeed_SnapshotRequestCarriesCurrentSeq(t *testing.T) {
	srv, ts := startFeed(t, nil)
	conn := dial(t, ts, "")
	_ = readMessage(t, conn)

	require.NoError(t, srv.Hub().Publish(events.FeedMessage{
		Type: events.EventNodeAdded,
		Node: &events.CompanyPayload{ID: "quantum", Label: "Quantum Forge"},
	}))
	added := readMessage(t, conn)

	// A resync must not consume a sequence number of its own.
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"action":"request_snapshot"}`)))
	snap := readMessage(t, conn)
	assert.Equal(t, events.EventGraphReplace, snap.Type)
	assert.Equal(t, added.Seq, snap.Seq)
}

func TestFeed_RequiresTokenWhenAuthEnabled(t *testing.T) {
	jwtService := auth.NewJWTService("feed-secret", "dealgraph", time.Hour)
	_, ts := startFeed(t, jwtService)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Browsers cannot set upgrade headers, so the token rides the query
	// string.
	token, err := jwtService.IssueToken("analyst-7")
	require.NoError(t, err)
	conn := dial(t, ts, "?token="+token)
	msg := readMessage(t, conn)
	assert.Equal(t, events.EventGraphReplace, msg.Type)
}

func TestFeed_ConnectionCount(t *testing.T) {
	srv, ts := startFeed(t, nil)

	conn := dial(t, ts, "")
	_ = readMessage(t, conn)
	assert.Eventually(t, func() bool { return srv.Hub().ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Hub().ConnectionCount() == 0 },
		time.Second, 10*time.Millisecond)
}
