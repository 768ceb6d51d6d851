package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	"dealgraph/engine/overlay"
	"dealgraph/engine/viewport"
)

func feedSnapshot(seq uint64, nodeIDs []string) events.FeedMessage {
	snap := &events.SnapshotPayload{}
	for _, id := range nodeIDs {
		snap.Nodes = append(snap.Nodes, events.CompanyPayload{ID: id, Label: id})
	}
	return events.FeedMessage{Seq: seq, Type: events.EventGraphReplace, Snapshot: snap}
}

func waitForFrame(t *testing.T, e *Engine, ok func(*Frame) bool) *Frame {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("frame condition never met")
			return nil
		case <-time.After(5 * time.Millisecond):
			if f := e.Frame(); ok(f) {
				return f
			}
		}
	}
}

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{
		FrameInterval:   5 * time.Millisecond,
		Width:           800,
		Height:          600,
		ShowPredictions: true,
		ShowLabels:      true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e
}

func TestEngine_PublishesFramesFromFeed(t *testing.T) {
	e := startEngine(t)

	require.NotNil(t, e.Frame(), "a frame exists before the loop starts")

	e.HandleFeedMessage(feedSnapshot(1, []string{"a", "b", "c"}))
	e.HandleFeedMessage(events.FeedMessage{
		Seq:  2,
		Type: events.EventEdgeAdded,
		Edge: &events.DealPayload{ID: "e1", SourceID: "a", TargetID: "b", DealType: "merger"},
	})

	frame := waitForFrame(t, e, func(f *Frame) bool {
		return len(f.Scene.Nodes) == 3 && len(f.Scene.Edges) == 1
	})
	assert.Equal(t, uint64(2), frame.Feed.LastSeq)
	assert.Greater(t, frame.Alpha, 0.0, "a structural change reheats the layout")
}

func TestEngine_SelectionThroughPointer(t *testing.T) {
	e := startEngine(t)
	e.HandleFeedMessage(feedSnapshot(1, []string{"a"}))

	frame := waitForFrame(t, e, func(f *Frame) bool { return len(f.Scene.Nodes) == 1 })
	node := frame.Scene.Nodes[0]

	e.PointerDown(node.X, node.Y)
	e.PointerUp(node.X, node.Y)

	frame = waitForFrame(t, e, func(f *Frame) bool {
		return f.Selection.Kind == viewport.SelectCompany
	})
	assert.True(t, frame.Selection.CompanyID.Equals(node.ID))
}

type engineStubRequester struct {
	result *simulation.Result
}

func (s engineStubRequester) Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	return s.result, nil
}

func TestEngine_SimulationOverlayLifecycle(t *testing.T) {
	e := startEngine(t)
	e.SetFeedRequester(nil, engineStubRequester{result: &simulation.Result{
		ScenarioText: "what if a acquires b",
		Confidence:   0.7,
		NewOrChangedEdges: []events.DealPayload{{
			ID: "sim-1", SourceID: "a", TargetID: "b",
			DealType: "acquisition", IsPredicted: true, Confidence: 0.7,
		}},
	}})

	e.HandleFeedMessage(feedSnapshot(1, []string{"a", "b"}))
	waitForFrame(t, e, func(f *Frame) bool { return len(f.Scene.Nodes) == 2 })

	e.StartSimulation(context.Background(), simulation.ScenarioRequest{
		ScenarioText:      "what if a acquires b",
		CompaniesInvolved: []string{"a", "b"},
	})

	frame := waitForFrame(t, e, func(f *Frame) bool { return f.Overlay == overlay.StateActive })
	require.NotNil(t, frame.Result)
	assert.Len(t, frame.Scene.Edges, 1, "the overlay edge renders without touching the live store")

	e.ResetSimulation()
	frame = waitForFrame(t, e, func(f *Frame) bool { return f.Overlay == overlay.StateInactive })
	assert.Empty(t, frame.Scene.Edges)
	assert.Len(t, frame.Scene.Nodes, 2)
}

func TestEngine_ViewportCommands(t *testing.T) {
	e := startEngine(t)
	e.HandleFeedMessage(feedSnapshot(1, []string{"a"}))
	waitForFrame(t, e, func(f *Frame) bool { return len(f.Scene.Nodes) == 1 })

	before := waitForFrame(t, e, func(f *Frame) bool { return true }).Scene.Nodes[0]

	e.ZoomAt(2, 400, 300)
	after := waitForFrame(t, e, func(f *Frame) bool {
		return len(f.Scene.Nodes) == 1 && f.Scene.Nodes[0].Radius > before.Radius
	}).Scene.Nodes[0]
	assert.Greater(t, after.Radius, before.Radius)

	e.ResetView()
	waitForFrame(t, e, func(f *Frame) bool {
		return len(f.Scene.Nodes) == 1 && f.Scene.Nodes[0].Radius < after.Radius
	})
}
