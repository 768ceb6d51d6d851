package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
)

// Predictor is the inference backend, remote or local
type Predictor interface {
	Predict(ctx context.Context, snap *aggregates.GraphSnapshot) ([]events.DealPayload, error)
	Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error)
}

// PredictionService keeps the graph's predicted edge layer current and
// answers simulation requests against the live snapshot
type PredictionService struct {
	graphs    *GraphService
	predictor Predictor
	interval  time.Duration
	logger    *zap.Logger
}

// NewPredictionService creates the service. Interval controls the
// periodic refresh cadence; zero disables it.
func NewPredictionService(graphs *GraphService, predictor Predictor, interval time.Duration, logger *zap.Logger) *PredictionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionService{
		graphs:    graphs,
		predictor: predictor,
		interval:  interval,
		logger:    logger,
	}
}

// Run refreshes predictions on the configured cadence until ctx is
// canceled. A failed refresh keeps the previous prediction set.
func (s *PredictionService) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("periodic prediction refresh disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("prediction refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh recomputes the predicted edge set and swaps it into the graph
func (s *PredictionService) Refresh(ctx context.Context) error {
	snap := s.graphs.Snapshot()

	payloads, err := s.predictor.Predict(ctx, snap)
	if err != nil {
		return err
	}

	predictions := make([]*entities.Deal, 0, len(payloads))
	for _, payload := range payloads {
		deal, err := payload.ToEntity()
		if err != nil {
			s.logger.Warn("dropping malformed prediction", zap.Error(err))
			continue
		}
		if !deal.IsPredicted() {
			s.logger.Warn("dropping non-predicted edge from predictor",
				zap.String("deal_id", deal.ID().String()),
			)
			continue
		}
		// Predictions for companies outside the graph cannot be drawn
		if !snap.HasCompany(deal.SourceID()) || !snap.HasCompany(deal.TargetID()) {
			continue
		}
		predictions = append(predictions, deal)
	}

	if err := s.graphs.ReplacePredictions(predictions); err != nil {
		return err
	}
	s.logger.Info("predictions refreshed", zap.Int("count", len(predictions)))
	return nil
}

// Simulate evaluates a scenario against the current graph without
// touching it
func (s *PredictionService) Simulate(ctx context.Context, req simulation.ScenarioRequest) (*simulation.Result, error) {
	return s.predictor.Simulate(ctx, s.graphs.Snapshot(), req)
}
