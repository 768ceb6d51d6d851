// Package store owns the live graph data model. It is the single
// writer-entry-point for structural mutations: everything arrives as a
// deltas.Delta and is applied atomically, so layout and render never
// observe a half-applied change such as a dangling edge.
package store

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	pkgerrors "dealgraph/pkg/errors"
)

// goldenAngle spaces freshly inserted nodes on a phyllotaxis spiral so
// they start untangled instead of stacked at the origin.
const goldenAngle = math.Pi * (3 - 2.2360679774997896) // π(3−√5)

const seedSpacing = 24.0

// Result summarizes what a delta application changed, so the engine
// loop can decide how much re-settling the layout needs.
type Result struct {
	// Structural is true when the node/edge set itself changed
	Structural bool
	// Affected lists the companies whose local neighborhood changed
	Affected []valueobjects.CompanyID
}

// Store is the mutable graph model. It is not safe for concurrent use;
// the engine loop serializes all access (one writer by construction).
type Store struct {
	nodes    map[valueobjects.CompanyID]*entities.Company
	edges    map[valueobjects.DealID]*entities.Deal
	seeded   int
	snapshot *aggregates.GraphSnapshot
	logger   *zap.Logger
}

// New creates an empty store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		nodes:  make(map[valueobjects.CompanyID]*entities.Company),
		edges:  make(map[valueobjects.DealID]*entities.Deal),
		logger: logger,
	}
}

// Apply executes a single delta atomically. Idempotent per ID: re-adding
// an existing node or edge refreshes attributes but preserves position
// and pin state. Malformed deltas return a typed error and leave the
// model untouched.
func (s *Store) Apply(d deltas.Delta) (Result, error) {
	switch delta := d.(type) {
	case deltas.FullReplace:
		return s.applyFullReplace(delta)
	case deltas.AddNode:
		return s.applyAddNode(delta)
	case deltas.RemoveNode:
		return s.applyRemoveNode(delta)
	case deltas.AddEdge:
		return s.applyAddEdge(delta)
	case deltas.RemoveEdge:
		return s.applyRemoveEdge(delta)
	case deltas.ReplacePredictions:
		return s.applyReplacePredictions(delta)
	case nil:
		return Result{}, pkgerrors.NewValidationError("nil delta")
	default:
		return Result{}, pkgerrors.NewValidationError(fmt.Sprintf("unknown delta kind %T", d))
	}
}

func (s *Store) applyFullReplace(d deltas.FullReplace) (Result, error) {
	nodes := make(map[valueobjects.CompanyID]*entities.Company, len(d.Nodes))
	for _, incoming := range d.Nodes {
		if incoming == nil {
			continue
		}
		id := incoming.ID()
		if prev, ok := s.nodes[id]; ok {
			// Surviving node: keep the on-screen entity so position and
			// pin state carry over, refresh everything else.
			if err := prev.Refresh(incoming); err != nil {
				return Result{}, err
			}
			nodes[id] = prev
		} else {
			s.seedPosition(incoming)
			nodes[id] = incoming
		}
	}

	edges := make(map[valueobjects.DealID]*entities.Deal, len(d.Edges))
	for _, e := range d.Edges {
		if e == nil {
			continue
		}
		if _, ok := nodes[e.SourceID()]; !ok {
			s.warnDangling(e, e.SourceID())
			continue
		}
		if _, ok := nodes[e.TargetID()]; !ok {
			s.warnDangling(e, e.TargetID())
			continue
		}
		edges[e.ID()] = e
	}

	s.nodes = nodes
	s.edges = edges
	s.invalidate()

	s.logger.Info("graph replaced",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)

	return Result{Structural: true, Affected: s.allIDs()}, nil
}

func (s *Store) applyAddNode(d deltas.AddNode) (Result, error) {
	if d.Node == nil {
		return Result{}, pkgerrors.NewValidationError("add_node delta carries no node")
	}
	id := d.Node.ID()
	if prev, ok := s.nodes[id]; ok {
		// Attribute refresh only; no layout disturbance.
		if err := prev.Refresh(d.Node); err != nil {
			return Result{}, err
		}
		return Result{Structural: false, Affected: []valueobjects.CompanyID{id}}, nil
	}

	s.seedPosition(d.Node)
	s.nodes[id] = d.Node
	s.invalidate()
	return Result{Structural: true, Affected: []valueobjects.CompanyID{id}}, nil
}

func (s *Store) applyRemoveNode(d deltas.RemoveNode) (Result, error) {
	if _, ok := s.nodes[d.ID]; !ok {
		return Result{}, pkgerrors.NewNotFoundError("company " + d.ID.String())
	}

	// Cascade: every edge touching the node goes in the same delta
	// application, so no reader ever sees a dangling edge.
	affected := []valueobjects.CompanyID{d.ID}
	for key, e := range s.edges {
		if !e.Touches(d.ID) {
			continue
		}
		delete(s.edges, key)
		other := e.SourceID()
		if other.Equals(d.ID) {
			other = e.TargetID()
		}
		affected = append(affected, other)
	}

	delete(s.nodes, d.ID)
	s.invalidate()
	return Result{Structural: true, Affected: affected}, nil
}

func (s *Store) applyAddEdge(d deltas.AddEdge) (Result, error) {
	if d.Edge == nil {
		return Result{}, pkgerrors.NewValidationError("add_edge delta carries no edge")
	}
	if _, ok := s.nodes[d.Edge.SourceID()]; !ok {
		return Result{}, pkgerrors.NewUnknownEndpointError(d.Edge.ID().String(), d.Edge.SourceID().String())
	}
	if _, ok := s.nodes[d.Edge.TargetID()]; !ok {
		return Result{}, pkgerrors.NewUnknownEndpointError(d.Edge.ID().String(), d.Edge.TargetID().String())
	}

	_, existed := s.edges[d.Edge.ID()]
	s.edges[d.Edge.ID()] = d.Edge
	s.invalidate()
	return Result{
		Structural: !existed,
		Affected:   []valueobjects.CompanyID{d.Edge.SourceID(), d.Edge.TargetID()},
	}, nil
}

func (s *Store) applyRemoveEdge(d deltas.RemoveEdge) (Result, error) {
	e, ok := s.edges[d.ID]
	if !ok {
		return Result{}, pkgerrors.NewNotFoundError("deal " + d.ID.String())
	}
	delete(s.edges, d.ID)
	s.invalidate()
	return Result{
		Structural: true,
		Affected:   []valueobjects.CompanyID{e.SourceID(), e.TargetID()},
	}, nil
}

func (s *Store) applyReplacePredictions(d deltas.ReplacePredictions) (Result, error) {
	var affected []valueobjects.CompanyID

	for key, e := range s.edges {
		if e.IsPredicted() {
			delete(s.edges, key)
			affected = append(affected, e.SourceID(), e.TargetID())
		}
	}

	for _, e := range d.Edges {
		if e == nil {
			continue
		}
		if !e.IsPredicted() {
			s.logger.Warn("dropping non-predicted edge from predictions replace",
				zap.String("edge_id", e.ID().String()),
			)
			continue
		}
		if _, ok := s.nodes[e.SourceID()]; !ok {
			s.warnDangling(e, e.SourceID())
			continue
		}
		if _, ok := s.nodes[e.TargetID()]; !ok {
			s.warnDangling(e, e.TargetID())
			continue
		}
		s.edges[e.ID()] = e
		affected = append(affected, e.SourceID(), e.TargetID())
	}

	s.invalidate()
	return Result{Structural: true, Affected: dedupe(affected)}, nil
}

// Snapshot returns the current graph view. The snapshot is cached and
// only rebuilt after a structural change; attribute and position
// updates flow through shared entity pointers without a rebuild.
func (s *Store) Snapshot() *aggregates.GraphSnapshot {
	if s.snapshot == nil {
		nodes := make(map[valueobjects.CompanyID]*entities.Company, len(s.nodes))
		for k, v := range s.nodes {
			nodes[k] = v
		}
		edges := make(map[valueobjects.DealID]*entities.Deal, len(s.edges))
		for k, v := range s.edges {
			edges[k] = v
		}
		s.snapshot = aggregates.NewGraphSnapshot(nodes, edges)
	}
	return s.snapshot
}

// Company looks up a live node by ID
func (s *Store) Company(id valueobjects.CompanyID) (*entities.Company, bool) {
	c, ok := s.nodes[id]
	return c, ok
}

// HasCompany reports whether the node exists
func (s *Store) HasCompany(id valueobjects.CompanyID) bool {
	_, ok := s.nodes[id]
	return ok
}

// Deal looks up a live edge by ID
func (s *Store) Deal(id valueobjects.DealID) (*entities.Deal, bool) {
	d, ok := s.edges[id]
	return d, ok
}

// Counts returns the current node and edge counts
func (s *Store) Counts() (nodes, edges int) {
	return len(s.nodes), len(s.edges)
}

func (s *Store) invalidate() {
	s.snapshot = nil
}

// seedPosition places a brand-new node on a phyllotaxis spiral around
// the origin. Deterministic, so tests and replays lay out identically.
func (s *Store) seedPosition(c *entities.Company) {
	i := float64(s.seeded)
	r := seedSpacing * math.Sqrt(i)
	theta := i * goldenAngle
	// Coordinates from the spiral are always finite.
	_ = c.MoveTo(r*math.Cos(theta), r*math.Sin(theta))
	s.seeded++
}

func (s *Store) warnDangling(e *entities.Deal, missing valueobjects.CompanyID) {
	s.logger.Warn("dropping dangling edge",
		zap.String("edge_id", e.ID().String()),
		zap.String("missing_company", missing.String()),
	)
}

func (s *Store) allIDs() []valueobjects.CompanyID {
	out := make([]valueobjects.CompanyID, 0, len(s.nodes))
	for id := range s.nodes {
		out = append(out, id)
	}
	return out
}

func dedupe(ids []valueobjects.CompanyID) []valueobjects.CompanyID {
	seen := make(map[valueobjects.CompanyID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
