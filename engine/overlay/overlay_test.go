package overlay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	"dealgraph/engine/store"
	pkgerrors "dealgraph/pkg/errors"
)

type stubRequester struct {
	result *simulation.Result
	err    error
}

func (s stubRequester) Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	return s.result, s.err
}

// captureRequester hands the snapshot it was given back to the test.
type captureRequester struct {
	result *simulation.Result
	snaps  chan *aggregates.GraphSnapshot
}

func (c captureRequester) Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	c.snaps <- snap
	return c.result, nil
}

// blockingRequester waits for cancellation and reports it.
type blockingRequester struct {
	canceled chan struct{}
}

func (b *blockingRequester) Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	<-ctx.Done()
	close(b.canceled)
	return nil, ctx.Err()
}

func cid(t *testing.T, raw string) valueobjects.CompanyID {
	t.Helper()
	id, err := valueobjects.NewCompanyID(raw)
	require.NoError(t, err)
	return id
}

func liveSnapshot(t *testing.T, ids ...string) *aggregates.GraphSnapshot {
	t.Helper()
	nodes := make([]*entities.Company, 0, len(ids))
	for _, raw := range ids {
		c, err := entities.NewCompany(cid(t, raw), raw, entities.CompanyAttributes{ExtraordinaryScore: 50})
		require.NoError(t, err)
		nodes = append(nodes, c)
	}
	st := store.New(nil)
	_, err := st.Apply(deltas.FullReplace{Nodes: nodes})
	require.NoError(t, err)
	return st.Snapshot()
}

func scenario() simulation.ScenarioRequest {
	return simulation.ScenarioRequest{
		ScenarioText:      "what if a acquires b",
		CompaniesInvolved: []string{"a", "b"},
		DealType:          "acquisition",
	}
}

func predictedResult(t *testing.T, source, target string, affected ...string) *simulation.Result {
	t.Helper()
	ids := make([]valueobjects.CompanyID, 0, len(affected))
	for _, raw := range affected {
		ids = append(ids, cid(t, raw))
	}
	return &simulation.Result{
		ScenarioText:    "what if a acquires b",
		Confidence:      0.8,
		AffectedNodeIDs: ids,
		NewOrChangedEdges: []events.DealPayload{{
			ID:          "sim-1",
			SourceID:    source,
			TargetID:    target,
			DealType:    "acquisition",
			IsPredicted: true,
			Confidence:  0.8,
		}},
		CreatedAt: time.Now(),
	}
}

// runScenario drives one Start/Complete round trip synchronously.
func runScenario(t *testing.T, m *Manager, live *aggregates.GraphSnapshot, r Requester) ([]valueobjects.CompanyID, error) {
	t.Helper()
	ch := make(chan Response, 1)
	m.Start(context.Background(), live, scenario(), r, func(resp Response) { ch <- resp })
	select {
	case resp := <-ch:
		return m.Complete(live, resp)
	case <-time.After(time.Second):
		t.Fatal("simulation response never delivered")
		return nil, nil
	}
}

func TestOverlay_AppliesPatchAndFreezesRest(t *testing.T) {
	live := liveSnapshot(t, "a", "b", "c")
	m := NewManager(nil, nil)

	affected, err := runScenario(t, m, live, stubRequester{result: predictedResult(t, "a", "b", "a", "b")})
	require.NoError(t, err)
	assert.True(t, m.Active())
	assert.Len(t, affected, 2)

	// The merged view carries the predicted edge; the live snapshot does not.
	view := m.View(live)
	assert.Equal(t, 1, view.Metadata().EdgeCount)
	assert.Zero(t, live.Metadata().EdgeCount)

	// Unaffected nodes are frozen while the overlay settles.
	c, ok := live.Company(cid(t, "c"))
	require.True(t, ok)
	assert.True(t, c.Pinned())

	a, ok := live.Company(cid(t, "a"))
	require.True(t, ok)
	assert.False(t, a.Pinned())
}

func TestOverlay_ResetRestoresPositionsExactly(t *testing.T) {
	live := liveSnapshot(t, "a", "b", "c")
	m := NewManager(nil, nil)

	a, _ := live.Company(cid(t, "a"))
	before := a.Position()

	_, err := runScenario(t, m, live, stubRequester{result: predictedResult(t, "a", "b", "a", "b")})
	require.NoError(t, err)

	// Simulated settling drifts the affected node.
	require.NoError(t, a.MoveTo(before.X()+120, before.Y()-60))
	require.NoError(t, a.SetVelocity(valueobjects.Velocity{DX: 3, DY: -1}))

	restored := m.Reset()
	assert.False(t, m.Active())
	assert.Contains(t, restored, cid(t, "a"))

	after := a.Position()
	assert.Equal(t, before.X(), after.X())
	assert.Equal(t, before.Y(), after.Y())
	assert.Zero(t, a.Velocity().DX)

	c, _ := live.Company(cid(t, "c"))
	assert.False(t, c.Pinned(), "frozen nodes must be released")

	// With no overlay the view is the live snapshot itself.
	assert.Same(t, live, m.View(live))
}

func TestOverlay_SynthesizesUnknownEndpoint(t *testing.T) {
	live := liveSnapshot(t, "a")
	m := NewManager(nil, nil)

	_, err := runScenario(t, m, live, stubRequester{result: predictedResult(t, "a", "nimbus-holdings", "a")})
	require.NoError(t, err)

	require.True(t, m.IsOverlayNode(cid(t, "nimbus-holdings")))

	// The synthetic node is seeded near its live counterpart.
	view := m.View(live)
	ghost, ok := view.Company(cid(t, "nimbus-holdings"))
	require.True(t, ok)
	a, _ := live.Company(cid(t, "a"))
	assert.InDelta(t, a.Position().X(), ghost.Position().X(), 50)
	assert.InDelta(t, a.Position().Y(), ghost.Position().Y(), 50)

	// Reset discards the synthetic node entirely.
	m.Reset()
	assert.False(t, m.IsOverlayNode(cid(t, "nimbus-holdings")))
	_, ok = live.Company(cid(t, "nimbus-holdings"))
	assert.False(t, ok, "live graph must never see overlay nodes")
}

func TestOverlay_StaleResponseDiscarded(t *testing.T) {
	live := liveSnapshot(t, "a", "b")
	m := NewManager(nil, nil)

	first := &blockingRequester{canceled: make(chan struct{})}
	m.Start(context.Background(), live, scenario(), first, func(Response) {})

	// A second Start supersedes the first request and cancels it.
	ch := make(chan Response, 1)
	m.Start(context.Background(), live, scenario(), stubRequester{result: predictedResult(t, "a", "b", "a", "b")}, func(resp Response) { ch <- resp })

	select {
	case <-first.canceled:
	case <-time.After(time.Second):
		t.Fatal("superseded request was not canceled")
	}

	// A response from the first generation arrives late and is dropped.
	_, err := m.Complete(live, Response{Generation: 1, Result: predictedResult(t, "a", "b", "a", "b")})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, "STALE_RESULT"))

	// The latest generation still applies.
	resp := <-ch
	_, err = m.Complete(live, resp)
	require.NoError(t, err)
	assert.True(t, m.Active())
}

func TestOverlay_RequestErrorLeavesLiveGraphAlone(t *testing.T) {
	live := liveSnapshot(t, "a", "b", "c")
	m := NewManager(nil, nil)

	_, err := runScenario(t, m, live, stubRequester{err: errors.New("inference backend down")})
	require.Error(t, err)
	assert.Equal(t, StateInactive, m.State())
	assert.Same(t, live, m.View(live))

	c, _ := live.Company(cid(t, "c"))
	assert.False(t, c.Pinned())
}

func TestOverlay_InvalidResultRejected(t *testing.T) {
	live := liveSnapshot(t, "a", "b")
	m := NewManager(nil, nil)

	bad := predictedResult(t, "a", "b", "a", "b")
	bad.Confidence = 1.4

	_, err := runScenario(t, m, live, stubRequester{result: bad})
	require.Error(t, err)
	assert.Equal(t, StateInactive, m.State())
}

func TestOverlay_RequesterGetsDetachedSnapshot(t *testing.T) {
	live := liveSnapshot(t, "a", "b")
	m := NewManager(nil, nil)

	snaps := make(chan *aggregates.GraphSnapshot, 1)
	ch := make(chan Response, 1)
	r := captureRequester{result: predictedResult(t, "a", "b", "a", "b"), snaps: snaps}
	m.Start(context.Background(), live, scenario(), r, func(resp Response) { ch <- resp })

	var seen *aggregates.GraphSnapshot
	select {
	case seen = <-snaps:
	case <-time.After(time.Second):
		t.Fatal("requester never invoked")
	}

	liveA, _ := live.Company(cid(t, "a"))
	seenA, ok := seen.Company(cid(t, "a"))
	require.True(t, ok)
	require.NotSame(t, liveA, seenA)

	// The engine keeps moving the live entity while the round trip is
	// in flight; the requester's copy must not move with it.
	before := seenA.Position()
	require.NoError(t, liveA.MoveTo(before.X()+500, before.Y()-500))
	assert.Equal(t, before.X(), seenA.Position().X())
	assert.Equal(t, before.Y(), seenA.Position().Y())
}

func TestOverlay_AffectedSetCoversPatchEndpoints(t *testing.T) {
	live := liveSnapshot(t, "a", "b", "c")
	m := NewManager(nil, nil)

	// The service flags only "a"; the patch edge also touches the live
	// node "b" and a company the live graph does not know.
	_, err := runScenario(t, m, live, stubRequester{result: predictedResult(t, "b", "nimbus-holdings", "a")})
	require.NoError(t, err)

	set := m.AffectedSet()
	require.NotNil(t, set)
	assert.Contains(t, set, cid(t, "a"))
	assert.Contains(t, set, cid(t, "b"), "patch edge endpoints count as affected")
	assert.Contains(t, set, cid(t, "nimbus-holdings"), "synthesized endpoints count as affected")
	assert.NotContains(t, set, cid(t, "c"))

	// The highlight set and the restore machinery agree: the patch
	// endpoint is saved for restore, not frozen with the rest.
	b, _ := live.Company(cid(t, "b"))
	assert.False(t, b.Pinned())

	m.Reset()
	assert.Nil(t, m.AffectedSet())
}

func TestOverlay_ViewCachedPerBaseSnapshot(t *testing.T) {
	live := liveSnapshot(t, "a", "b")
	m := NewManager(nil, nil)

	_, err := runScenario(t, m, live, stubRequester{result: predictedResult(t, "a", "b", "a", "b")})
	require.NoError(t, err)

	v1 := m.View(live)
	v2 := m.View(live)
	assert.Same(t, v1, v2)
}
