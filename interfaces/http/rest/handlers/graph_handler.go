// Package handlers implements the HTTP handlers of the feed service
// API. Handlers translate requests into commands and queries, dispatch
// them on the buses and map failures through the shared error handler.
package handlers

import (
	"net/http"
	"strconv"

	"dealgraph/application/commands"
	commandbus "dealgraph/application/commands/bus"
	"dealgraph/application/queries"
	querybus "dealgraph/application/queries/bus"
	"dealgraph/domain/events"
	"dealgraph/pkg/common"
	pkgerrors "dealgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// GraphHandler handles graph read and mutation requests
type GraphHandler struct {
	commandBus *commandbus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(commandBus *commandbus.CommandBus, queryBus *querybus.QueryBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	includePredictions := true
	if raw := r.URL.Query().Get("predictions"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("predictions must be a boolean"))
			return
		}
		includePredictions = parsed
	}

	view, err := h.queryBus.Ask(r.Context(), queries.GetGraphQuery{IncludePredictions: includePredictions})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, view)
}

// GetStats handles GET /graph/stats
func (h *GraphHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	view, err := h.queryBus.Ask(r.Context(), queries.GetStatsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, view)
}

// GetCompany handles GET /companies/{companyID}
func (h *GraphHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	view, err := h.queryBus.Ask(r.Context(), queries.GetCompanyQuery{
		CompanyID: chi.URLParam(r, "companyID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, view)
}

// IngestDeal handles POST /deals
func (h *GraphHandler) IngestDeal(w http.ResponseWriter, r *http.Request) {
	var cmd commands.IngestDealCommand
	if err := common.ParseJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("deal ingested",
		zap.String("deal_id", cmd.Deal.ID),
		zap.String("source_id", cmd.Source.ID),
		zap.String("target_id", cmd.Target.ID),
	)
	common.RespondJSON(w, http.StatusCreated, map[string]string{"deal_id": cmd.Deal.ID})
}

// RemoveCompany handles DELETE /companies/{companyID}
func (h *GraphHandler) RemoveCompany(w http.ResponseWriter, r *http.Request) {
	cmd := commands.RemoveCompanyCommand{CompanyID: chi.URLParam(r, "companyID")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"company_id": cmd.CompanyID})
}

// RemoveDeal handles DELETE /deals/{dealID}
func (h *GraphHandler) RemoveDeal(w http.ResponseWriter, r *http.Request) {
	cmd := commands.RemoveDealCommand{DealID: chi.URLParam(r, "dealID")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"deal_id": cmd.DealID})
}

// LoadSnapshot handles POST /graph
func (h *GraphHandler) LoadSnapshot(w http.ResponseWriter, r *http.Request) {
	var snapshot events.SnapshotPayload
	if err := common.ParseJSONBody(w, r, &snapshot, 16*maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	cmd := commands.LoadSnapshotCommand{Snapshot: &snapshot}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("snapshot loaded",
		zap.Int("nodes", len(snapshot.Nodes)),
		zap.Int("edges", len(snapshot.Edges)),
	)
	common.RespondJSON(w, http.StatusOK, map[string]int{
		"nodes": len(snapshot.Nodes),
		"edges": len(snapshot.Edges),
	})
}

// RefreshPredictions handles POST /predictions/refresh
func (h *GraphHandler) RefreshPredictions(w http.ResponseWriter, r *http.Request) {
	if err := h.commandBus.Send(r.Context(), commands.RefreshPredictionsCommand{}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "refreshed"})
}
