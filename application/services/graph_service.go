// Package services holds the feed service's application logic: the
// authoritative graph model and the prediction refresh workflow.
package services

import (
	"sync"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	"dealgraph/domain/events"
	"dealgraph/engine/store"
	pkgerrors "dealgraph/pkg/errors"
)

// FeedPublisher announces committed graph changes to connected
// dashboards. Satisfied by the websocket publisher.
type FeedPublisher interface {
	GraphReplaced(nodes []*entities.Company, edges []*entities.Deal)
	NodeAdded(c *entities.Company)
	NodeRemoved(id valueobjects.CompanyID)
	EdgeAdded(d *entities.Deal)
	EdgeRemoved(id valueobjects.DealID)
	PredictionsReplaced(predictions []*entities.Deal)
}

// GraphService owns the server-side authoritative graph. HTTP handlers
// run concurrently, so unlike the dashboard engine this store is
// guarded by a mutex. Publishing happens under the same lock, which
// guarantees the feed sequence matches commit order; the hub's buffered
// channel keeps the publish call cheap.
type GraphService struct {
	mu        sync.Mutex
	store     *store.Store
	publisher FeedPublisher
	logger    *zap.Logger
}

// NewGraphService creates the service around an empty graph
func NewGraphService(publisher FeedPublisher, logger *zap.Logger) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{
		store:     store.New(logger.Named("store")),
		publisher: publisher,
		logger:    logger,
	}
}

// Replace swaps the whole graph, used at startup and for dataset loads
func (s *GraphService) Replace(nodes []*entities.Company, edges []*entities.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Apply(deltas.FullReplace{Nodes: nodes, Edges: edges}); err != nil {
		return err
	}

	s.publisher.GraphReplaced(nodes, edges)
	s.logger.Info("graph replaced",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nil
}

// IngestDeal records a deal and its two companies. Companies already
// in the graph keep their identity; the new deal is rejected if it
// would dangle.
func (s *GraphService) IngestDeal(source, target *entities.Company, deal *entities.Deal) error {
	if !deal.Touches(source.ID()) || !deal.Touches(target.ID()) {
		return pkgerrors.NewValidationError("deal endpoints do not match the supplied companies")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addedSource := !s.store.HasCompany(source.ID())
	if _, err := s.store.Apply(deltas.AddNode{Node: source}); err != nil {
		return err
	}
	addedTarget := !s.store.HasCompany(target.ID())
	if _, err := s.store.Apply(deltas.AddNode{Node: target}); err != nil {
		return err
	}
	if _, err := s.store.Apply(deltas.AddEdge{Edge: deal}); err != nil {
		return err
	}

	// Node events go out before the edge so no client ever parks it
	if addedSource {
		s.publisher.NodeAdded(source)
	}
	if addedTarget {
		s.publisher.NodeAdded(target)
	}
	s.publisher.EdgeAdded(deal)
	return nil
}

// AddCompany inserts or refreshes a single company
func (s *GraphService) AddCompany(c *entities.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Apply(deltas.AddNode{Node: c}); err != nil {
		return err
	}
	s.publisher.NodeAdded(c)
	return nil
}

// RemoveCompany deletes a company. The removal cascades to its deals on
// the server and on every client.
func (s *GraphService) RemoveCompany(id valueobjects.CompanyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.HasCompany(id) {
		return pkgerrors.NewNotFoundError("company " + id.String())
	}
	if _, err := s.store.Apply(deltas.RemoveNode{ID: id}); err != nil {
		return err
	}
	s.publisher.NodeRemoved(id)
	return nil
}

// RemoveDeal deletes a single deal
func (s *GraphService) RemoveDeal(id valueobjects.DealID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Deal(id); !ok {
		return pkgerrors.NewNotFoundError("deal " + id.String())
	}
	if _, err := s.store.Apply(deltas.RemoveEdge{ID: id}); err != nil {
		return err
	}
	s.publisher.EdgeRemoved(id)
	return nil
}

// ReplacePredictions swaps the predicted edge set, leaving observed
// deals untouched
func (s *GraphService) ReplacePredictions(predictions []*entities.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Apply(deltas.ReplacePredictions{Edges: predictions}); err != nil {
		return err
	}
	s.publisher.PredictionsReplaced(predictions)
	return nil
}

// Snapshot returns a detached copy of the current graph. Callers hold
// it outside the lock while writers keep refreshing the live entities,
// so sharing pointers here would race.
func (s *GraphService) Snapshot() *aggregates.GraphSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot().Clone()
}

// SnapshotPayload builds the wire form of the full graph, used by the
// hub to seed joining clients. Serialization happens under the lock so
// entity state cannot change mid-encode.
func (s *GraphService) SnapshotPayload() *events.SnapshotPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.store.Snapshot()
	return events.SnapshotToPayload(snap.Companies(), snap.Deals())
}

// Company looks up one company
func (s *GraphService) Company(id valueobjects.CompanyID) (*entities.Company, bool) {
	return s.Snapshot().Company(id)
}

// Stats summarizes the current graph
func (s *GraphService) Stats() aggregates.SnapshotMetadata {
	return s.Snapshot().Metadata()
}
