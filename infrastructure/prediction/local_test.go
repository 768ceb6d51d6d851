package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	"dealgraph/domain/simulation"
	"dealgraph/engine/store"
)

func buildSnapshot(t *testing.T, nodeIDs []string, edges [][2]string) *aggregates.GraphSnapshot {
	t.Helper()

	nodes := make([]*entities.Company, 0, len(nodeIDs))
	for _, raw := range nodeIDs {
		id, err := valueobjects.NewCompanyID(raw)
		require.NoError(t, err)
		c, err := entities.NewCompany(id, raw, entities.CompanyAttributes{ExtraordinaryScore: 50})
		require.NoError(t, err)
		nodes = append(nodes, c)
	}

	observed := make([]*entities.Deal, 0, len(edges))
	for _, e := range edges {
		sid, err := valueobjects.NewCompanyID(e[0])
		require.NoError(t, err)
		tid, err := valueobjects.NewCompanyID(e[1])
		require.NoError(t, err)
		d, err := entities.NewDeal(valueobjects.NewDealID(), sid, tid, entities.DealTypePartnership, entities.DealAttributes{})
		require.NoError(t, err)
		observed = append(observed, d)
	}

	st := store.New(nil)
	_, err := st.Apply(deltas.FullReplace{Nodes: nodes, Edges: observed})
	require.NoError(t, err)
	return st.Snapshot()
}

func TestLocalPredictor_CommonNeighbors(t *testing.T) {
	// a and b share two partners (h1, h2) but have no direct deal.
	snap := buildSnapshot(t,
		[]string{"a", "b", "h1", "h2"},
		[][2]string{{"a", "h1"}, {"a", "h2"}, {"b", "h1"}, {"b", "h2"}},
	)

	predictions := NewLocalPredictor(nil).Predict(snap)

	require.Len(t, predictions, 1)
	p := predictions[0]
	assert.Equal(t, "a", p.SourceID)
	assert.Equal(t, "b", p.TargetID)
	assert.True(t, p.IsPredicted)
	assert.InDelta(t, 0.3, p.Confidence, 1e-9)
	assert.Equal(t, string(entities.DealTypePartnership), p.DealType)
}

func TestLocalPredictor_SingleSharedPartnerIsNotEnough(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"a", "b", "h1"},
		[][2]string{{"a", "h1"}, {"b", "h1"}},
	)

	assert.Empty(t, NewLocalPredictor(nil).Predict(snap))
}

func TestLocalPredictor_SkipsDirectlyConnectedPairs(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"a", "b", "h1", "h2"},
		[][2]string{{"a", "h1"}, {"a", "h2"}, {"b", "h1"}, {"b", "h2"}, {"a", "b"}},
	)

	assert.Empty(t, NewLocalPredictor(nil).Predict(snap))
}

func TestLocalPredictor_ConfidenceGrowsWithOverlapAndCaps(t *testing.T) {
	// Six shared partners: 0.3 + 0.1*4 exceeds the cap, so 0.7.
	nodeIDs := []string{"a", "b", "h1", "h2", "h3", "h4", "h5", "h6"}
	var edges [][2]string
	for _, h := range nodeIDs[2:] {
		edges = append(edges, [2]string{"a", h}, [2]string{"b", h})
	}
	snap := buildSnapshot(t, nodeIDs, edges)

	predictions := NewLocalPredictor(nil).Predict(snap)
	require.Len(t, predictions, 1)
	assert.InDelta(t, 0.7, predictions[0].Confidence, 1e-9)
}

func TestLocalPredictor_SimulateBlastZone(t *testing.T) {
	// c is a direct partner of a; d is two hops out and stays unaffected.
	snap := buildSnapshot(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "c"}, {"c", "d"}},
	)

	result, err := NewLocalPredictor(nil).Simulate(snap, simulation.ScenarioRequest{
		ScenarioText:      "what if a merges with b",
		CompaniesInvolved: []string{"a", "b"},
		DealType:          "merger",
	})
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	require.Len(t, result.NewOrChangedEdges, 1)
	edge := result.NewOrChangedEdges[0]
	assert.Equal(t, "a", edge.SourceID)
	assert.Equal(t, "b", edge.TargetID)
	assert.Equal(t, "merger", edge.DealType)
	assert.True(t, edge.IsPredicted)

	affected := result.AffectedSet()
	for _, raw := range []string{"a", "b", "c"} {
		id, err := valueobjects.NewCompanyID(raw)
		require.NoError(t, err)
		assert.Contains(t, affected, id)
	}
	dID, err := valueobjects.NewCompanyID("d")
	require.NoError(t, err)
	assert.NotContains(t, affected, dID)
}

func TestLocalPredictor_SimulateRequiresCompanies(t *testing.T) {
	snap := buildSnapshot(t, []string{"a"}, nil)
	_, err := NewLocalPredictor(nil).Simulate(snap, simulation.ScenarioRequest{ScenarioText: "empty"})
	assert.Error(t, err)
}
