package handlers

import (
	"net/http"

	"dealgraph/application/services"
	"dealgraph/domain/simulation"
	"dealgraph/pkg/common"
	pkgerrors "dealgraph/pkg/errors"

	"go.uber.org/zap"
)

// SimulationHandler evaluates what-if scenarios. Results are returned
// to the caller only; they are never written into the live graph.
type SimulationHandler struct {
	predictions *services.PredictionService
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(predictions *services.PredictionService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *SimulationHandler {
	return &SimulationHandler{
		predictions: predictions,
		errors:      errors,
		logger:      logger,
	}
}

// Simulate handles POST /simulate
func (h *SimulationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulation.ScenarioRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.predictions.Simulate(r.Context(), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("scenario evaluated",
		zap.Int("companies", len(req.CompaniesInvolved)),
		zap.Float64("confidence", result.Confidence),
	)
	common.RespondJSON(w, http.StatusOK, result)
}
