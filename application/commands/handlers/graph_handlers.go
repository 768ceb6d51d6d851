// Package handlers executes graph write commands against the
// application services.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dealgraph/application/commands"
	"dealgraph/application/commands/bus"
	"dealgraph/application/services"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	pkgerrors "dealgraph/pkg/errors"
)

// IngestDealHandler records deals coming in from the ingest API
type IngestDealHandler struct {
	graphs *services.GraphService
	logger *zap.Logger
}

// NewIngestDealHandler creates the handler
func NewIngestDealHandler(graphs *services.GraphService, logger *zap.Logger) *IngestDealHandler {
	return &IngestDealHandler{graphs: graphs, logger: logger}
}

// Handle implements bus.CommandHandler
func (h *IngestDealHandler) Handle(_ context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.IngestDealCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	source, err := c.Source.ToEntity()
	if err != nil {
		return err
	}
	target, err := c.Target.ToEntity()
	if err != nil {
		return err
	}
	deal, err := c.Deal.ToEntity()
	if err != nil {
		return err
	}

	return h.graphs.IngestDeal(source, target, deal)
}

// RemoveCompanyHandler deletes companies
type RemoveCompanyHandler struct {
	graphs *services.GraphService
}

// NewRemoveCompanyHandler creates the handler
func NewRemoveCompanyHandler(graphs *services.GraphService) *RemoveCompanyHandler {
	return &RemoveCompanyHandler{graphs: graphs}
}

// Handle implements bus.CommandHandler
func (h *RemoveCompanyHandler) Handle(_ context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.RemoveCompanyCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	id, err := valueobjects.NewCompanyID(c.CompanyID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return h.graphs.RemoveCompany(id)
}

// RemoveDealHandler deletes single deals
type RemoveDealHandler struct {
	graphs *services.GraphService
}

// NewRemoveDealHandler creates the handler
func NewRemoveDealHandler(graphs *services.GraphService) *RemoveDealHandler {
	return &RemoveDealHandler{graphs: graphs}
}

// Handle implements bus.CommandHandler
func (h *RemoveDealHandler) Handle(_ context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.RemoveDealCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	id, err := valueobjects.NewDealIDFromString(c.DealID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return h.graphs.RemoveDeal(id)
}

// LoadSnapshotHandler replaces the whole graph from a payload
type LoadSnapshotHandler struct {
	graphs *services.GraphService
	logger *zap.Logger
}

// NewLoadSnapshotHandler creates the handler
func NewLoadSnapshotHandler(graphs *services.GraphService, logger *zap.Logger) *LoadSnapshotHandler {
	return &LoadSnapshotHandler{graphs: graphs, logger: logger}
}

// Handle implements bus.CommandHandler
func (h *LoadSnapshotHandler) Handle(_ context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.LoadSnapshotCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	nodes := make([]*entities.Company, 0, len(c.Snapshot.Nodes))
	for _, payload := range c.Snapshot.Nodes {
		node, err := payload.ToEntity()
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
	}
	edges := make([]*entities.Deal, 0, len(c.Snapshot.Edges))
	for _, payload := range c.Snapshot.Edges {
		edge, err := payload.ToEntity()
		if err != nil {
			return err
		}
		edges = append(edges, edge)
	}

	return h.graphs.Replace(nodes, edges)
}

// RefreshPredictionsHandler triggers an immediate prediction refresh
type RefreshPredictionsHandler struct {
	predictions *services.PredictionService
}

// NewRefreshPredictionsHandler creates the handler
func NewRefreshPredictionsHandler(predictions *services.PredictionService) *RefreshPredictionsHandler {
	return &RefreshPredictionsHandler{predictions: predictions}
}

// Handle implements bus.CommandHandler
func (h *RefreshPredictionsHandler) Handle(ctx context.Context, cmd bus.Command) error {
	if _, ok := cmd.(commands.RefreshPredictionsCommand); !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	return h.predictions.Refresh(ctx)
}
