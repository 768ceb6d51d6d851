package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	"dealgraph/engine/store"
	"dealgraph/engine/viewport"
)

func sceneSnapshot(t *testing.T) *aggregates.GraphSnapshot {
	t.Helper()

	mkCompany := func(id, industry string, x, y float64) *entities.Company {
		cid, err := valueobjects.NewCompanyID(id)
		require.NoError(t, err)
		c, err := entities.NewCompany(cid, id, entities.CompanyAttributes{
			Industry:           industry,
			ExtraordinaryScore: 60,
		})
		require.NoError(t, err)
		require.NoError(t, c.MoveTo(x, y))
		return c
	}

	mkDeal := func(id, source, target string, predicted bool, confidence float64) *entities.Deal {
		did, err := valueobjects.NewDealIDFromString(id)
		require.NoError(t, err)
		sid, err := valueobjects.NewCompanyID(source)
		require.NoError(t, err)
		tid, err := valueobjects.NewCompanyID(target)
		require.NoError(t, err)
		if predicted {
			d, err := entities.NewPredictedDeal(did, sid, tid, entities.DealTypePartnership, confidence, entities.DealAttributes{})
			require.NoError(t, err)
			return d
		}
		d, err := entities.NewDeal(did, sid, tid, entities.DealTypeAcquisition, entities.DealAttributes{})
		require.NoError(t, err)
		return d
	}

	st := store.New(nil)
	_, err := st.Apply(deltas.FullReplace{
		Nodes: []*entities.Company{
			mkCompany("a", "technology", 0, 0),
			mkCompany("b", "finance", 100, 0),
			mkCompany("c", "technology", 0, 80),
		},
		Edges: []*entities.Deal{
			mkDeal("e1", "a", "b", false, 0),
			mkDeal("p1", "a", "c", true, 0.6),
		},
	})
	require.NoError(t, err)
	return st.Snapshot()
}

func TestBuildScene_PredictionsToggle(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	with := BuildScene(snap, vp, Options{ShowPredictions: true})
	without := BuildScene(snap, vp, Options{ShowPredictions: false})

	assert.Len(t, with.Edges, 2)
	assert.Len(t, without.Edges, 1)
	assert.False(t, without.Edges[0].Predicted)
}

func TestBuildScene_PredictedEdgeStyling(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	scene := BuildScene(snap, vp, Options{ShowPredictions: true})

	var predicted *EdgeStroke
	for i := range scene.Edges {
		if scene.Edges[i].Predicted {
			predicted = &scene.Edges[i]
		}
	}
	require.NotNil(t, predicted)
	assert.True(t, predicted.Dashed)
	assert.InDelta(t, 0.6, predicted.Confidence, 1e-9)

	// Confidence modulates opacity; a 0.6 edge sits between the floor
	// and fully opaque.
	alpha := float64(predicted.Color.A) / 255
	assert.Greater(t, alpha, predictedMinAlpha)
	assert.Less(t, alpha, 1.0)
}

func TestBuildScene_LabelCulling(t *testing.T) {
	snap := sceneSnapshot(t)

	zoomedIn := viewport.New(800, 600, 0.2, 4)
	scene := BuildScene(snap, zoomedIn, Options{ShowLabels: true})
	assert.Len(t, scene.Labels, 3)

	zoomedOut := viewport.New(800, 600, 0.2, 4)
	zoomedOut.ZoomAt(0.5, 400, 300)
	scene = BuildScene(snap, zoomedOut, Options{ShowLabels: true})
	assert.Empty(t, scene.Labels, "labels are culled below the readability threshold")
}

func TestBuildScene_SelectionAndHighlightRings(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	aID, err := valueobjects.NewCompanyID("a")
	require.NoError(t, err)
	bID, err := valueobjects.NewCompanyID("b")
	require.NoError(t, err)

	scene := BuildScene(snap, vp, Options{
		ShowPredictions: true,
		Selection:       viewport.Selection{Kind: viewport.SelectCompany, CompanyID: aID},
		Highlight:       &bID,
	})

	rings := 0
	for _, n := range scene.Nodes {
		if n.Ring != nil {
			rings++
		}
	}
	assert.Equal(t, 2, rings)
}

func TestBuildScene_SelectedDealWidens(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	e1, err := valueobjects.NewDealIDFromString("e1")
	require.NoError(t, err)

	plain := BuildScene(snap, vp, Options{})
	selected := BuildScene(snap, vp, Options{
		Selection: viewport.Selection{Kind: viewport.SelectDeal, DealID: e1},
	})

	require.Len(t, plain.Edges, 1)
	require.Len(t, selected.Edges, 1)
	assert.True(t, selected.Edges[0].Selected)
	assert.Greater(t, selected.Edges[0].Width, plain.Edges[0].Width)
}

func TestBuildScene_AffectedAndOverlayDecoration(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	cID, err := valueobjects.NewCompanyID("c")
	require.NoError(t, err)

	scene := BuildScene(snap, vp, Options{
		ShowPredictions: true,
		AffectedNodes:   map[valueobjects.CompanyID]struct{}{cID: {}},
		IsOverlayNode:   func(id valueobjects.CompanyID) bool { return id.Equals(cID) },
	})

	var node *NodeCircle
	for i := range scene.Nodes {
		if scene.Nodes[i].ID.Equals(cID) {
			node = &scene.Nodes[i]
		}
	}
	require.NotNil(t, node)
	assert.True(t, node.Overlay)
	assert.NotNil(t, node.Ring)
	assert.Less(t, node.Fill.A, uint8(255), "overlay nodes render translucent")
}

func TestBuildScene_LegendListsPresentSectors(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	scene := BuildScene(snap, vp, Options{ShowLegend: true})

	require.Len(t, scene.Legend, 2)
	assert.Equal(t, "finance", scene.Legend[0].Caption)
	assert.Equal(t, "technology", scene.Legend[1].Caption)
}

func TestBuildScene_DeterministicOrder(t *testing.T) {
	snap := sceneSnapshot(t)
	vp := viewport.New(800, 600, 0.2, 4)

	first := BuildScene(snap, vp, Options{ShowPredictions: true, ShowLabels: true})
	second := BuildScene(snap, vp, Options{ShowPredictions: true, ShowLabels: true})

	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Labels, second.Labels)
}
