// Package overlay implements the what-if simulation view. A scenario
// result is layered over the live graph as a base+patch fork: readers
// see the merged view, the live store is never written, and Reset
// restores the pre-simulation picture exactly.
//
// Concurrent Start policy: last-wins. A new request cancels the pending
// one; a response carrying a stale generation is discarded. This was
// chosen over queueing because the user is iterating on one scenario at
// a time and only the latest phrasing matters.
package overlay

import (
	"context"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/simulation"
	pkgerrors "dealgraph/pkg/errors"
	"dealgraph/pkg/metrics"
)

// State is the overlay lifecycle: inactive → pending → active → inactive
type State int

const (
	StateInactive State = iota
	StatePending
	StateActive
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// Requester runs a scenario against the prediction service. Blocking;
// always invoked off the engine loop.
type Requester interface {
	Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error)
}

// Response is delivered back to the engine loop when a simulation
// round-trip finishes.
type Response struct {
	Generation uint64
	Result     *simulation.Result
	Err        error
}

// Manager owns the overlay state machine. Owned by the engine loop;
// not safe for concurrent use. Only the Start-spawned goroutine runs
// elsewhere, and it communicates back through the deliver callback.
type Manager struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	state      State
	generation uint64
	cancel     context.CancelFunc
	result     *simulation.Result

	// Highlight set for the active overlay: the result's affected IDs
	// plus every patch edge endpoint, synthesized ones included.
	affected map[valueobjects.CompanyID]struct{}

	// The patch: entities that exist only while the overlay is active
	patchNodes map[valueobjects.CompanyID]*entities.Company
	patchEdges map[valueobjects.DealID]*entities.Deal

	// Restoration bookkeeping. Entity pointers are shared with the
	// live store, so position restore works without a snapshot lookup.
	saved  map[valueobjects.CompanyID]savedNode
	frozen []*entities.Company

	// Merged view cache, valid while base and patch are unchanged
	viewBase *aggregates.GraphSnapshot
	view     *aggregates.GraphSnapshot
}

type savedNode struct {
	node *entities.Company
	pos  valueobjects.Position
}

// NewManager creates an inactive overlay manager
func NewManager(logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, metrics: m}
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	return m.state
}

// Active reports whether an overlay is currently applied
func (m *Manager) Active() bool {
	return m.state == StateActive
}

// Result returns the active simulation result, or nil
func (m *Manager) Result() *simulation.Result {
	if m.state != StateActive {
		return nil
	}
	return m.result
}

// Start launches a simulation round-trip. Any pending request is
// canceled (last-wins) and an active overlay is rolled back first so
// the scenario always runs against the live graph. The response is
// handed to deliver on the requester goroutine; the caller must route
// it back onto the engine loop and call Complete.
// Returns the node IDs whose positions were restored by the implicit
// rollback, for partial reheating.
func (m *Manager) Start(
	ctx context.Context,
	snap *aggregates.GraphSnapshot,
	req simulation.ScenarioRequest,
	requester Requester,
	deliver func(Response),
) []valueobjects.CompanyID {
	restored := m.Reset()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.generation++
	m.state = StatePending

	gen := m.generation
	m.logger.Info("simulation started",
		zap.Uint64("generation", gen),
		zap.Int("companies", len(req.CompaniesInvolved)),
	)

	// The requester runs off the engine loop while the loop keeps
	// mutating live entities, so it gets a detached copy.
	detached := snap.Clone()
	go func() {
		res, err := requester.Simulate(ctx, detached, req)
		deliver(Response{Generation: gen, Result: res, Err: err})
	}()

	return restored
}

// Complete consumes a simulation response on the engine loop. Stale
// responses (an older generation than the latest Start) are discarded:
// the overlay must never apply a result the user has already moved past.
// Returns the affected node IDs for partial reheating.
func (m *Manager) Complete(live *aggregates.GraphSnapshot, resp Response) ([]valueobjects.CompanyID, error) {
	if resp.Generation != m.generation {
		m.logger.Debug("discarding stale simulation response",
			zap.Uint64("generation", resp.Generation),
			zap.Uint64("current", m.generation),
		)
		m.outcome("stale")
		return nil, pkgerrors.NewStaleResultError(resp.Generation, m.generation)
	}

	if m.state != StatePending {
		m.outcome("stale")
		return nil, pkgerrors.NewStaleResultError(resp.Generation, m.generation)
	}

	if resp.Err != nil {
		// Failure leaves the overlay inactive and the live graph alone
		m.state = StateInactive
		m.outcome("error")
		return nil, pkgerrors.NewExternalError("prediction", resp.Err)
	}
	if resp.Result == nil {
		m.state = StateInactive
		m.outcome("error")
		return nil, pkgerrors.NewExternalError("prediction", pkgerrors.NewInternalError("empty result"))
	}
	if err := resp.Result.Validate(); err != nil {
		m.state = StateInactive
		m.outcome("invalid")
		return nil, err
	}

	affected := m.apply(live, resp.Result)
	m.outcome("applied")
	return affected, nil
}

// apply builds the patch from a validated result
func (m *Manager) apply(live *aggregates.GraphSnapshot, result *simulation.Result) []valueobjects.CompanyID {
	m.result = result
	m.patchNodes = make(map[valueobjects.CompanyID]*entities.Company)
	m.patchEdges = make(map[valueobjects.DealID]*entities.Deal)
	m.saved = make(map[valueobjects.CompanyID]savedNode)
	m.frozen = m.frozen[:0]

	affectedSet := result.AffectedSet()

	for _, payload := range result.NewOrChangedEdges {
		edge, err := payload.ToEntity()
		if err != nil {
			m.logger.Warn("dropping malformed simulation edge", zap.Error(err))
			continue
		}
		m.patchEdges[edge.ID()] = edge
		m.ensureEndpoint(live, edge.SourceID(), edge.TargetID(), affectedSet)
		m.ensureEndpoint(live, edge.TargetID(), edge.SourceID(), affectedSet)
	}

	// Save positions of affected live nodes so Reset is exact, and
	// freeze everything else so the what-if settling cannot drift the
	// rest of the graph.
	affected := make([]valueobjects.CompanyID, 0, len(affectedSet))
	live.EachCompany(func(c *entities.Company) bool {
		id := c.ID()
		if _, ok := affectedSet[id]; ok {
			m.saved[id] = savedNode{node: c, pos: c.Position()}
			affected = append(affected, id)
			return true
		}
		if !c.Pinned() {
			c.Pin()
			m.frozen = append(m.frozen, c)
		}
		return true
	})

	m.state = StateActive
	m.affected = affectedSet
	m.invalidateView()
	m.logger.Info("simulation overlay applied",
		zap.Int("patch_edges", len(m.patchEdges)),
		zap.Int("patch_nodes", len(m.patchNodes)),
		zap.Int("affected", len(affected)),
		zap.Float64("confidence", result.Confidence),
	)
	return affected
}

// ensureEndpoint synthesizes an overlay-only node for an endpoint the
// live graph does not know, seeded next to its counterpart so it fades
// in close to the action.
func (m *Manager) ensureEndpoint(
	live *aggregates.GraphSnapshot,
	id, counterpart valueobjects.CompanyID,
	affectedSet map[valueobjects.CompanyID]struct{},
) {
	if live.HasCompany(id) {
		// Endpoint of a changed edge counts as affected even if the
		// service forgot to flag it
		affectedSet[id] = struct{}{}
		return
	}
	if _, ok := m.patchNodes[id]; ok {
		return
	}

	node, err := entities.NewCompany(id, id.String(), entities.CompanyAttributes{
		ExtraordinaryScore: 50,
	})
	if err != nil {
		m.logger.Warn("cannot synthesize overlay node", zap.Error(err))
		return
	}
	x, y := 40.0, -40.0
	if mate, ok := live.Company(counterpart); ok {
		pos := mate.Position()
		x += pos.X()
		y += pos.Y()
	} else if mate, ok := m.patchNodes[counterpart]; ok {
		pos := mate.Position()
		x += pos.X()
		y += pos.Y()
	}
	_ = node.MoveTo(x, y)
	m.patchNodes[id] = node
	affectedSet[id] = struct{}{}
}

// View returns the merged snapshot: live ⊕ patch. With no active
// overlay it returns the live snapshot unchanged. The merge is map
// copies over shared entity pointers and is cached per base snapshot.
func (m *Manager) View(live *aggregates.GraphSnapshot) *aggregates.GraphSnapshot {
	if m.state != StateActive {
		return live
	}
	if m.view != nil && m.viewBase == live {
		return m.view
	}

	nodes := make(map[valueobjects.CompanyID]*entities.Company, live.Metadata().NodeCount+len(m.patchNodes))
	live.EachCompany(func(c *entities.Company) bool {
		nodes[c.ID()] = c
		return true
	})
	for id, n := range m.patchNodes {
		nodes[id] = n
	}

	edges := make(map[valueobjects.DealID]*entities.Deal, live.Metadata().EdgeCount+len(m.patchEdges))
	live.EachDeal(func(d *entities.Deal) bool {
		edges[d.ID()] = d
		return true
	})
	for id, e := range m.patchEdges {
		edges[id] = e
	}

	m.viewBase = live
	m.view = aggregates.NewGraphSnapshot(nodes, edges)
	return m.view
}

// AffectedSet returns the active overlay's highlight set, or nil. The
// set is computed once when the result is applied and covers both the
// flagged nodes and the patch edge endpoints.
func (m *Manager) AffectedSet() map[valueobjects.CompanyID]struct{} {
	if m.state != StateActive {
		return nil
	}
	return m.affected
}

// IsOverlayNode reports whether the company exists only in the overlay
func (m *Manager) IsOverlayNode(id valueobjects.CompanyID) bool {
	_, ok := m.patchNodes[id]
	return ok
}

// Reset cancels any pending request and tears the overlay down
// completely: saved positions are restored, frozen nodes released and
// every overlay-only entity discarded. Work is proportional to the
// patch, not the graph. Returns the node IDs whose positions were
// restored, for partial reheating.
func (m *Manager) Reset() []valueobjects.CompanyID {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if m.state != StateActive {
		m.state = StateInactive
		return nil
	}

	restored := make([]valueobjects.CompanyID, 0, len(m.saved))
	for id, s := range m.saved {
		restored = append(restored, id)
		_ = s.node.MoveTo(s.pos.X(), s.pos.Y())
		_ = s.node.SetVelocity(valueobjects.Velocity{})
	}
	for _, c := range m.frozen {
		c.Unpin()
	}

	m.state = StateInactive
	m.result = nil
	m.affected = nil
	m.patchNodes = nil
	m.patchEdges = nil
	m.saved = nil
	m.frozen = nil
	m.invalidateView()

	m.logger.Info("simulation overlay reset", zap.Int("restored", len(restored)))
	return restored
}

func (m *Manager) invalidateView() {
	m.view = nil
}

func (m *Manager) outcome(o string) {
	if m.metrics != nil {
		m.metrics.SimulationRequests.WithLabelValues(o).Inc()
	}
}
