// Package handlers executes graph read queries against the application
// services.
package handlers

import (
	"context"
	"fmt"
	"time"

	"dealgraph/application/queries"
	"dealgraph/application/queries/bus"
	"dealgraph/application/services"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
	pkgerrors "dealgraph/pkg/errors"
)

// GraphView is the response shape of the full-graph query
type GraphView struct {
	Nodes []events.CompanyPayload `json:"nodes"`
	Edges []events.DealPayload    `json:"edges"`
}

// StatsView is the response shape of the stats query
type StatsView struct {
	NodeCount      int    `json:"node_count"`
	EdgeCount      int    `json:"edge_count"`
	PredictedCount int    `json:"predicted_count"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

// CompanyView is the response shape of the single-company query
type CompanyView struct {
	Company events.CompanyPayload `json:"company"`
	Deals   []events.DealPayload  `json:"deals"`
}

// GetGraphHandler serves the full graph
type GetGraphHandler struct {
	graphs *services.GraphService
}

// NewGetGraphHandler creates the handler
func NewGetGraphHandler(graphs *services.GraphService) *GetGraphHandler {
	return &GetGraphHandler{graphs: graphs}
}

// Handle implements bus.QueryHandler
func (h *GetGraphHandler) Handle(_ context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetGraphQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	snap := h.graphs.Snapshot()
	payload := events.SnapshotToPayload(snap.Companies(), snap.Deals())

	view := GraphView{Nodes: payload.Nodes, Edges: payload.Edges}
	if !q.IncludePredictions {
		observed := view.Edges[:0]
		for _, e := range view.Edges {
			if !e.IsPredicted {
				observed = append(observed, e)
			}
		}
		view.Edges = observed
	}
	return view, nil
}

// GetStatsHandler serves graph summary counts
type GetStatsHandler struct {
	graphs *services.GraphService
}

// NewGetStatsHandler creates the handler
func NewGetStatsHandler(graphs *services.GraphService) *GetStatsHandler {
	return &GetStatsHandler{graphs: graphs}
}

// Handle implements bus.QueryHandler
func (h *GetStatsHandler) Handle(_ context.Context, query bus.Query) (interface{}, error) {
	if _, ok := query.(queries.GetStatsQuery); !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	meta := h.graphs.Stats()
	view := StatsView{
		NodeCount:      meta.NodeCount,
		EdgeCount:      meta.EdgeCount,
		PredictedCount: meta.PredictedCount,
	}
	if !meta.LastUpdated.IsZero() {
		view.LastUpdated = meta.LastUpdated.UTC().Format(time.RFC3339)
	}
	return view, nil
}

// GetCompanyHandler serves one company with its deal neighborhood
type GetCompanyHandler struct {
	graphs *services.GraphService
}

// NewGetCompanyHandler creates the handler
func NewGetCompanyHandler(graphs *services.GraphService) *GetCompanyHandler {
	return &GetCompanyHandler{graphs: graphs}
}

// Handle implements bus.QueryHandler
func (h *GetCompanyHandler) Handle(_ context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetCompanyQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	id, err := valueobjects.NewCompanyID(q.CompanyID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	snap := h.graphs.Snapshot()
	company, ok := snap.Company(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("company " + id.String())
	}

	view := CompanyView{Company: events.CompanyToPayload(company)}
	for _, deal := range snap.DealsTouching(id) {
		view.Deals = append(view.Deals, events.DealToPayload(deal))
	}
	return view, nil
}
