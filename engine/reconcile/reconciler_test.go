package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/events"
	"dealgraph/engine/store"
	pkgerrors "dealgraph/pkg/errors"
)

type fakeRequester struct {
	requests int
}

func (f *fakeRequester) RequestSnapshot() { f.requests++ }

func nodePayload(id string) *events.CompanyPayload {
	return &events.CompanyPayload{ID: id, Label: id}
}

func edgePayload(id, source, target string) *events.DealPayload {
	return &events.DealPayload{ID: id, SourceID: source, TargetID: target, DealType: "partnership"}
}

func replaceMessage(seq uint64, nodeIDs []string, edges [][3]string) events.FeedMessage {
	snap := &events.SnapshotPayload{}
	for _, id := range nodeIDs {
		snap.Nodes = append(snap.Nodes, *nodePayload(id))
	}
	for _, e := range edges {
		snap.Edges = append(snap.Edges, *edgePayload(e[0], e[1], e[2]))
	}
	return events.FeedMessage{Seq: seq, Type: events.EventGraphReplace, Snapshot: snap}
}

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store, *fakeRequester) {
	t.Helper()
	st := store.New(nil)
	req := &fakeRequester{}
	r := New(st, nil, nil)
	r.SetRequester(req)
	return r, st, req
}

func TestReconciler_AppliesOrderedEvents(t *testing.T) {
	r, st, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventEdgeAdded, Edge: edgePayload("e1", "a", "b")})
	require.NoError(t, err)

	nodes, edges := st.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
	assert.Equal(t, uint64(3), r.Status().LastSeq)
}

func TestReconciler_SequenceGapRequestsSnapshot(t *testing.T) {
	r, st, req := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)
	require.Zero(t, req.requests)

	// Seq 3 skips 2: the event is dropped, a snapshot is requested.
	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, "SEQUENCE_GAP"))
	assert.Equal(t, 1, req.requests)

	nodes, _ := st.Counts()
	assert.Equal(t, 1, nodes, "event past the gap must not apply")

	// Everything else is dropped until the snapshot arrives.
	_, err = r.Apply(events.FeedMessage{Seq: 4, Type: events.EventNodeAdded, Node: nodePayload("c")})
	require.Error(t, err)

	// The snapshot re-anchors the sequence.
	_, err = r.Apply(replaceMessage(7, []string{"a", "b", "c"}, nil))
	require.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 8, Type: events.EventNodeAdded, Node: nodePayload("d")})
	require.NoError(t, err)

	nodes, _ = st.Counts()
	assert.Equal(t, 4, nodes)
}

func TestReconciler_HousekeepingFrameDoesNotOpenGap(t *testing.T) {
	r, st, req := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)
	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.NoError(t, err)

	// A housekeeping frame carries Seq 0 and an unknown type. It must
	// be rejected outright, not read as a sequence regression.
	_, err = r.Apply(events.FeedMessage{Type: "ping"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Zero(t, req.requests, "a non-event frame must not trigger recovery")

	// The stream is still trusted: the next in-order event applies.
	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventNodeAdded, Node: nodePayload("c")})
	require.NoError(t, err)

	nodes, _ := st.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, uint64(3), r.Status().LastSeq)
}

func TestReconciler_MalformedReplaceKeepsQuarantine(t *testing.T) {
	r, st, req := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)

	// Gap: events are quarantined until a snapshot lands.
	_, err = r.Apply(events.FeedMessage{Seq: 4, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.Error(t, err)
	require.Equal(t, 1, req.requests)

	// A graph_replace without a payload cannot re-anchor the stream.
	_, err = r.Apply(events.FeedMessage{Seq: 5, Type: events.EventGraphReplace})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 2, req.requests, "a garbage snapshot answer must be re-requested")

	// Still quarantined: in-order events after the bad replace drop.
	_, err = r.Apply(events.FeedMessage{Seq: 6, Type: events.EventNodeAdded, Node: nodePayload("c")})
	require.Error(t, err)
	nodes, _ := st.Counts()
	assert.Equal(t, 1, nodes, "no event may apply against the stale base")

	// A usable snapshot finally re-anchors.
	_, err = r.Apply(replaceMessage(7, []string{"a", "b", "c"}, nil))
	require.NoError(t, err)
	_, err = r.Apply(events.FeedMessage{Seq: 8, Type: events.EventNodeAdded, Node: nodePayload("d")})
	require.NoError(t, err)

	nodes, _ = st.Counts()
	assert.Equal(t, 4, nodes)
}

func TestReconciler_ParksEdgeUntilEndpointArrives(t *testing.T) {
	r, st, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)

	// Edge references node "b" which has not arrived yet.
	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventEdgeAdded, Edge: edgePayload("e1", "a", "b")})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Status().Parked)

	_, edges := st.Counts()
	require.Zero(t, edges)

	// The node arrives and the parked edge applies with it.
	res, err := r.Apply(events.FeedMessage{Seq: 3, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.NoError(t, err)
	assert.True(t, res.Structural)
	assert.Zero(t, r.Status().Parked)

	_, edges = st.Counts()
	assert.Equal(t, 1, edges)
}

func TestReconciler_DropsParkedEdgeWhenEndpointRemoved(t *testing.T) {
	r, st, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a", "x"}, nil))
	require.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventEdgeAdded, Edge: edgePayload("e1", "a", "b")})
	require.NoError(t, err)
	require.Equal(t, 1, r.Status().Parked)

	// "a" is removed; the parked edge touching it can never apply.
	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventNodeRemoved, NodeID: "a"})
	require.NoError(t, err)
	assert.Zero(t, r.Status().Parked)

	_, err = r.Apply(events.FeedMessage{Seq: 4, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.NoError(t, err)

	_, edges := st.Counts()
	assert.Zero(t, edges)
}

func TestReconciler_GraphReplaceClearsParkedEdges(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)
	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventEdgeAdded, Edge: edgePayload("e1", "a", "b")})
	require.NoError(t, err)
	require.Equal(t, 1, r.Status().Parked)

	_, err = r.Apply(replaceMessage(3, []string{"a"}, nil))
	require.NoError(t, err)
	assert.Zero(t, r.Status().Parked)
}

func TestReconciler_RemoveUnknownIsHarmless(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventNodeRemoved, NodeID: "ghost"})
	assert.NoError(t, err)

	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventEdgeRemoved, EdgeID: "ghost-edge"})
	assert.NoError(t, err)

	assert.Equal(t, uint64(3), r.Status().LastSeq)
}

func TestReconciler_SetLiveFalseDropsEvents(t *testing.T) {
	r, st, req := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a"}, nil))
	require.NoError(t, err)

	r.SetLive(false)
	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventNodeAdded, Node: nodePayload("b")})
	require.NoError(t, err)

	nodes, _ := st.Counts()
	assert.Equal(t, 1, nodes, "events must not apply while paused")

	// Re-enabling cannot trust the skipped stream and asks for a snapshot.
	before := req.requests
	r.SetLive(true)
	assert.Equal(t, before+1, req.requests)
}

func TestReconciler_ConnectRequestsSnapshot(t *testing.T) {
	r, _, req := newTestReconciler(t)

	r.HandleConnect()
	assert.True(t, r.Status().Connected)
	assert.Equal(t, 1, req.requests)

	r.HandleDisconnect(nil)
	assert.False(t, r.Status().Connected)
}

func TestReconciler_PredictionsReplaced(t *testing.T) {
	r, st, _ := newTestReconciler(t)

	_, err := r.Apply(replaceMessage(1, []string{"a", "b"}, [][3]string{{"e1", "a", "b"}}))
	require.NoError(t, err)

	p := *edgePayload("p1", "a", "b")
	p.IsPredicted = true
	p.Confidence = 0.5
	_, err = r.Apply(events.FeedMessage{Seq: 2, Type: events.EventPredictionsReplaced, Predictions: []events.DealPayload{p}})
	require.NoError(t, err)

	_, edges := st.Counts()
	assert.Equal(t, 2, edges)

	// An empty replacement clears predictions but keeps observed deals.
	_, err = r.Apply(events.FeedMessage{Seq: 3, Type: events.EventPredictionsReplaced})
	require.NoError(t, err)
	_, edges = st.Counts()
	assert.Equal(t, 1, edges)
}
