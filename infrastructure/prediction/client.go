// Package prediction talks to the deal inference service. The remote
// call is wrapped in a circuit breaker; while the breaker is open, or
// when no service is configured, a local graph heuristic answers
// instead so the dashboard never loses its predictive layer entirely.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	pkgerrors "dealgraph/pkg/errors"
)

const maxResponseBytes = 8 << 20

// Config holds the remote service settings
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Breaker tuning
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns breaker settings tolerant of a flaky inference
// backend
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          30 * time.Second,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		OpenTimeout:      60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// predictRequest is the wire form sent to the inference service
type predictRequest struct {
	Graph *events.SnapshotPayload `json:"graph"`
}

type predictResponse struct {
	Predictions []events.DealPayload `json:"predictions"`
}

// simulateRequest pairs the scenario with the graph it runs against
type simulateRequest struct {
	Scenario simulation.ScenarioRequest `json:"scenario"`
	Graph    *events.SnapshotPayload    `json:"graph"`
}

// Client answers prediction and simulation requests, remote-first with
// a local fallback
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	fallback *LocalPredictor
	logger   *zap.Logger
}

// NewClient creates a prediction client. An empty BaseURL makes every
// request use the local heuristic.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "prediction",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("prediction breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker,
		fallback: NewLocalPredictor(logger.Named("local")),
		logger:   logger,
	}
}

// Predict returns the predicted edge set for the given graph. Remote
// failures fall back to the local heuristic.
func (c *Client) Predict(ctx context.Context, snap *aggregates.GraphSnapshot) ([]events.DealPayload, error) {
	payload := events.SnapshotToPayload(snap.Companies(), snap.Deals())

	if c.cfg.BaseURL != "" {
		result, err := c.breaker.Execute(func() (any, error) {
			var resp predictResponse
			if err := c.post(ctx, "/predict", predictRequest{Graph: payload}, &resp); err != nil {
				return nil, err
			}
			return resp.Predictions, nil
		})
		if err == nil {
			return result.([]events.DealPayload), nil
		}
		c.logger.Warn("remote prediction failed, using local heuristic", zap.Error(err))
	}

	return c.fallback.Predict(snap), nil
}

// Simulate runs a what-if scenario. Satisfies the engine overlay's
// requester interface.
func (c *Client) Simulate(ctx context.Context, snap *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := events.SnapshotToPayload(snap.Companies(), snap.Deals())

	if c.cfg.BaseURL != "" {
		result, err := c.breaker.Execute(func() (any, error) {
			var res simulation.Result
			if err := c.post(ctx, "/simulate", simulateRequest{Scenario: req, Graph: payload}, &res); err != nil {
				return nil, err
			}
			return &res, nil
		})
		if err == nil {
			res := result.(*simulation.Result)
			if err := res.Validate(); err != nil {
				return nil, err
			}
			return res, nil
		}
		c.logger.Warn("remote simulation failed, using local heuristic", zap.Error(err))
	}

	return c.fallback.Simulate(snap, req)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.NewNetworkError("prediction service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.NewExternalError("prediction",
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.NewNetworkError("failed to read prediction response", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.NewExternalError("prediction",
			fmt.Errorf("undecodable response from %s: %w", path, err))
	}
	return nil
}
