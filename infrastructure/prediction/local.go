package prediction

import (
	"fmt"
	"sort"
	"time"

	"github.com/dominikbraun/graph"
	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	pkgerrors "dealgraph/pkg/errors"
)

const (
	// Companies sharing at least this many deal partners become a
	// predicted partnership
	minCommonNeighbors = 2

	localBaseConfidence = 0.3
	localMaxConfidence  = 0.7
	maxLocalPredictions = 50
)

// LocalPredictor is the offline heuristic: common-neighbor link
// prediction over the observed deal graph. Deliberately simple; it
// exists so the dashboard keeps a predictive layer when the inference
// service is down.
type LocalPredictor struct {
	logger *zap.Logger
}

// NewLocalPredictor creates a local predictor
func NewLocalPredictor(logger *zap.Logger) *LocalPredictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalPredictor{logger: logger}
}

// Predict proposes partnership edges between companies that share deal
// partners but have no direct deal yet
func (p *LocalPredictor) Predict(snap *aggregates.GraphSnapshot) []events.DealPayload {
	g, ids := p.buildObservedGraph(snap)

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		p.logger.Warn("failed to compute adjacency", zap.Error(err))
		return nil
	}

	type candidate struct {
		a, b   string
		common int
	}
	var candidates []candidate

	// Deterministic pair ordering for stable output
	sort.Strings(ids)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if _, direct := adjacency[a][b]; direct {
				continue
			}
			common := 0
			for n := range adjacency[a] {
				if _, ok := adjacency[b][n]; ok {
					common++
				}
			}
			if common >= minCommonNeighbors {
				candidates = append(candidates, candidate{a: a, b: b, common: common})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].common != candidates[j].common {
			return candidates[i].common > candidates[j].common
		}
		if candidates[i].a != candidates[j].a {
			return candidates[i].a < candidates[j].a
		}
		return candidates[i].b < candidates[j].b
	})
	if len(candidates) > maxLocalPredictions {
		candidates = candidates[:maxLocalPredictions]
	}

	predictions := make([]events.DealPayload, 0, len(candidates))
	for _, c := range candidates {
		confidence := localBaseConfidence + 0.1*float64(c.common-minCommonNeighbors)
		if confidence > localMaxConfidence {
			confidence = localMaxConfidence
		}
		predictions = append(predictions, events.DealPayload{
			ID:          valueobjects.NewDealID().String(),
			SourceID:    c.a,
			TargetID:    c.b,
			DealType:    string(entities.DealTypePartnership),
			IsPredicted: true,
			Confidence:  confidence,
			Attributes: entities.DealAttributes{
				Description: fmt.Sprintf("%d shared deal partners", c.common),
			},
		})
	}

	p.logger.Debug("local prediction complete",
		zap.Int("candidates", len(candidates)),
	)
	return predictions
}

// Simulate fabricates a plausible overlay for the scenario: one edge
// per consecutive pair of involved companies, with a radius-one blast
// zone around them.
func (p *LocalPredictor) Simulate(snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	if len(req.CompaniesInvolved) == 0 {
		return nil, pkgerrors.NewValidationError("scenario names no companies")
	}

	dealType := req.DealType
	if dealType == "" {
		dealType = string(entities.DealTypePartnership)
	}

	edges := make([]events.DealPayload, 0, len(req.CompaniesInvolved)-1)
	for i := 0; i+1 < len(req.CompaniesInvolved); i++ {
		edges = append(edges, events.DealPayload{
			ID:          valueobjects.NewDealID().String(),
			SourceID:    req.CompaniesInvolved[i],
			TargetID:    req.CompaniesInvolved[i+1],
			DealType:    dealType,
			IsPredicted: true,
			Confidence:  0.5,
			Attributes: entities.DealAttributes{
				Description: req.ScenarioText,
			},
		})
	}

	affected := p.blastZone(snap, req.CompaniesInvolved)

	return &simulation.Result{
		ScenarioText:      req.ScenarioText,
		Confidence:        0.5,
		AffectedNodeIDs:   affected,
		NewOrChangedEdges: edges,
		TimelineText:      "Heuristic estimate; the inference service was unavailable.",
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// blastZone is the involved companies plus their direct deal partners
func (p *LocalPredictor) blastZone(snap *aggregates.GraphSnapshot, involved []string) []valueobjects.CompanyID {
	seen := make(map[valueobjects.CompanyID]struct{})
	var out []valueobjects.CompanyID

	add := func(id valueobjects.CompanyID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	for _, raw := range involved {
		id, err := valueobjects.NewCompanyID(raw)
		if err != nil {
			continue
		}
		add(id)
		for _, deal := range snap.DealsTouching(id) {
			if deal.SourceID().Equals(id) {
				add(deal.TargetID())
			} else {
				add(deal.SourceID())
			}
		}
	}
	return out
}

// buildObservedGraph projects observed deals into an undirected
// weighted graph keyed by company ID
func (p *LocalPredictor) buildObservedGraph(snap *aggregates.GraphSnapshot) (graph.Graph[string, string], []string) {
	g := graph.New(graph.StringHash, graph.Weighted())

	var ids []string
	snap.EachCompany(func(c *entities.Company) bool {
		id := c.ID().String()
		_ = g.AddVertex(id)
		ids = append(ids, id)
		return true
	})
	snap.EachDeal(func(d *entities.Deal) bool {
		if d.IsPredicted() {
			return true
		}
		_ = g.AddEdge(d.SourceID().String(), d.TargetID().String(),
			graph.EdgeWeight(int(d.Weight())))
		return true
	})
	return g, ids
}
