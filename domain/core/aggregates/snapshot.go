package aggregates

import (
	"time"

	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	pkgerrors "dealgraph/pkg/errors"
)

// SnapshotMetadata carries graph-level counters for the UI chrome
type SnapshotMetadata struct {
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	PredictedCount int       `json:"predicted_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// GraphSnapshot is an immutable-by-convention pairing of the node and
// edge maps plus metadata. The store hands the same snapshot out to
// every reader and replaces it only on structural change; readers must
// never mutate it. Entities are shared by reference, so layout position
// writes are visible without a new snapshot.
type GraphSnapshot struct {
	nodes    map[valueobjects.CompanyID]*entities.Company
	edges    map[valueobjects.DealID]*entities.Deal
	metadata SnapshotMetadata
}

// NewGraphSnapshot builds a snapshot over the given maps, taking
// ownership of them. Nil maps are replaced with empty ones.
func NewGraphSnapshot(nodes map[valueobjects.CompanyID]*entities.Company, edges map[valueobjects.DealID]*entities.Deal) *GraphSnapshot {
	if nodes == nil {
		nodes = make(map[valueobjects.CompanyID]*entities.Company)
	}
	if edges == nil {
		edges = make(map[valueobjects.DealID]*entities.Deal)
	}

	predicted := 0
	for _, d := range edges {
		if d.IsPredicted() {
			predicted++
		}
	}

	return &GraphSnapshot{
		nodes: nodes,
		edges: edges,
		metadata: SnapshotMetadata{
			NodeCount:      len(nodes),
			EdgeCount:      len(edges),
			PredictedCount: predicted,
			LastUpdated:    time.Now(),
		},
	}
}

// Clone returns a detached copy safe to read off the owning goroutine.
// Companies are copied because layout and attribute refreshes mutate
// them in place; deals are immutable after construction and stay shared.
func (s *GraphSnapshot) Clone() *GraphSnapshot {
	nodes := make(map[valueobjects.CompanyID]*entities.Company, len(s.nodes))
	for id, c := range s.nodes {
		nodes[id] = c.Clone()
	}
	edges := make(map[valueobjects.DealID]*entities.Deal, len(s.edges))
	for id, d := range s.edges {
		edges[id] = d
	}
	return &GraphSnapshot{nodes: nodes, edges: edges, metadata: s.metadata}
}

// Metadata returns the snapshot's counters
func (s *GraphSnapshot) Metadata() SnapshotMetadata {
	return s.metadata
}

// Company looks up a node by ID
func (s *GraphSnapshot) Company(id valueobjects.CompanyID) (*entities.Company, bool) {
	c, ok := s.nodes[id]
	return c, ok
}

// Deal looks up an edge by ID
func (s *GraphSnapshot) Deal(id valueobjects.DealID) (*entities.Deal, bool) {
	d, ok := s.edges[id]
	return d, ok
}

// HasCompany reports whether the node exists
func (s *GraphSnapshot) HasCompany(id valueobjects.CompanyID) bool {
	_, ok := s.nodes[id]
	return ok
}

// EachCompany visits every node. Iteration order is unspecified.
func (s *GraphSnapshot) EachCompany(fn func(*entities.Company) bool) {
	for _, c := range s.nodes {
		if !fn(c) {
			return
		}
	}
}

// EachDeal visits every edge. Iteration order is unspecified.
func (s *GraphSnapshot) EachDeal(fn func(*entities.Deal) bool) {
	for _, d := range s.edges {
		if !fn(d) {
			return
		}
	}
}

// Companies returns all nodes as a slice copy
func (s *GraphSnapshot) Companies() []*entities.Company {
	out := make([]*entities.Company, 0, len(s.nodes))
	for _, c := range s.nodes {
		out = append(out, c)
	}
	return out
}

// Deals returns all edges as a slice copy
func (s *GraphSnapshot) Deals() []*entities.Deal {
	out := make([]*entities.Deal, 0, len(s.edges))
	for _, d := range s.edges {
		out = append(out, d)
	}
	return out
}

// DealsTouching returns the edges referencing the given company
func (s *GraphSnapshot) DealsTouching(id valueobjects.CompanyID) []*entities.Deal {
	var out []*entities.Deal
	for _, d := range s.edges {
		if d.Touches(id) {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the snapshot invariants: every edge endpoint must
// exist and counters must match the maps.
func (s *GraphSnapshot) Validate() error {
	for _, d := range s.edges {
		if _, ok := s.nodes[d.SourceID()]; !ok {
			return pkgerrors.NewConflictError("edge references unknown source company " + d.SourceID().String())
		}
		if _, ok := s.nodes[d.TargetID()]; !ok {
			return pkgerrors.NewConflictError("edge references unknown target company " + d.TargetID().String())
		}
	}
	if s.metadata.NodeCount != len(s.nodes) {
		return pkgerrors.NewConflictError("node count mismatch")
	}
	if s.metadata.EdgeCount != len(s.edges) {
		return pkgerrors.NewConflictError("edge count mismatch")
	}
	return nil
}
