package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commandbus "dealgraph/application/commands/bus"
	cmdhandlers "dealgraph/application/commands/handlers"
	querybus "dealgraph/application/queries/bus"
	qryhandlers "dealgraph/application/queries/handlers"
	"dealgraph/application/commands"
	"dealgraph/application/queries"
	"dealgraph/application/services"
	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	"dealgraph/interfaces/websocket"
	"dealgraph/pkg/auth"
	pkgerrors "dealgraph/pkg/errors"
	"dealgraph/pkg/metrics"
)

// stubPredictor answers Predict and Simulate without network calls.
type stubPredictor struct{}

func (stubPredictor) Predict(_ context.Context, _ *aggregates.GraphSnapshot) ([]events.DealPayload, error) {
	return nil, nil
}

func (stubPredictor) Simulate(_ context.Context, _ *aggregates.GraphSnapshot, req simulation.ScenarioRequest) (*simulation.Result, error) {
	return &simulation.Result{
		ScenarioText: req.ScenarioText,
		Confidence:   0.6,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

type apiFixture struct {
	server *httptest.Server
	token  string
	graphs *services.GraphService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	jwtService := auth.NewJWTService("api-test-secret", "dealgraph", time.Hour)
	token, err := jwtService.IssueToken("analyst-7")
	require.NoError(t, err)

	hub := websocket.NewHub(func() *events.SnapshotPayload { return &events.SnapshotPayload{} }, logger, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	publisher := websocket.NewPublisher(hub, logger)

	graphs := services.NewGraphService(publisher, logger)
	predictions := services.NewPredictionService(graphs, stubPredictor{}, 0, logger)

	cb := commandbus.NewCommandBus()
	require.NoError(t, cb.Register(commands.IngestDealCommand{}, cmdhandlers.NewIngestDealHandler(graphs, logger)))
	require.NoError(t, cb.Register(commands.RemoveCompanyCommand{}, cmdhandlers.NewRemoveCompanyHandler(graphs)))
	require.NoError(t, cb.Register(commands.RemoveDealCommand{}, cmdhandlers.NewRemoveDealHandler(graphs)))
	require.NoError(t, cb.Register(commands.LoadSnapshotCommand{}, cmdhandlers.NewLoadSnapshotHandler(graphs, logger)))
	require.NoError(t, cb.Register(commands.RefreshPredictionsCommand{}, cmdhandlers.NewRefreshPredictionsHandler(predictions)))

	qb := querybus.NewQueryBus()
	require.NoError(t, qb.Register(queries.GetGraphQuery{}, qryhandlers.NewGetGraphHandler(graphs)))
	require.NoError(t, qb.Register(queries.GetStatsQuery{}, qryhandlers.NewGetStatsHandler(graphs)))
	require.NoError(t, qb.Register(queries.GetCompanyQuery{}, qryhandlers.NewGetCompanyHandler(graphs)))

	feed := websocket.NewServer(hub, jwtService, nil, logger)
	router := NewRouter(
		cb, qb, graphs, predictions, feed, jwtService,
		metrics.New(), pkgerrors.NewErrorHandler(logger, true), logger,
		[]string{"http://localhost:3000"},
	)

	ts := httptest.NewServer(router.Setup())
	t.Cleanup(ts.Close)
	return &apiFixture{server: ts, token: token, graphs: graphs}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func ingestBody(dealID, source, target string) map[string]any {
	return map[string]any{
		"source": map[string]any{"id": source, "label": source},
		"target": map[string]any{"id": target, "label": target},
		"deal": map[string]any{
			"id":        dealID,
			"source_id": source,
			"target_id": target,
			"deal_type": "acquisition",
		},
	}
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_DealLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/deals", ingestBody("d1", "helios", "quantum"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = f.do(t, http.MethodGet, "/api/v1/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var graphResp struct {
		Success bool `json:"success"`
		Data    struct {
			Nodes []events.CompanyPayload `json:"nodes"`
			Edges []events.DealPayload    `json:"edges"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &graphResp))
	assert.True(t, graphResp.Success)
	assert.Len(t, graphResp.Data.Nodes, 2)
	assert.Len(t, graphResp.Data.Edges, 1)

	resp, body = f.do(t, http.MethodGet, "/api/v1/companies/helios", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/deals/d1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/companies/helios", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/v1/graph/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statsResp struct {
		Data qryhandlers.StatsView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &statsResp))
	assert.Equal(t, 1, statsResp.Data.NodeCount)
	assert.Zero(t, statsResp.Data.EdgeCount)
}

func TestAPI_NotFoundAndValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/companies/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errResp struct {
		Success bool `json:"success"`
		Error   *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.False(t, errResp.Success)

	// A deal whose endpoints disagree with the company payloads is
	// rejected before it reaches the graph.
	bad := ingestBody("d1", "helios", "quantum")
	bad["deal"].(map[string]any)["target_id"] = "someone-else"
	resp, _ = f.do(t, http.MethodPost, "/api/v1/deals", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_LoadSnapshotAndExport(t *testing.T) {
	f := newAPIFixture(t)

	snapshot := map[string]any{
		"snapshot": map[string]any{
			"nodes": []map[string]any{
				{"id": "helios", "label": "Helios Systems"},
				{"id": "quantum", "label": "Quantum Forge"},
			},
			"edges": []map[string]any{
				{"id": "d1", "source_id": "helios", "target_id": "quantum", "deal_type": "merger"},
			},
		},
	}
	resp, body := f.do(t, http.MethodPost, "/api/v1/graph", snapshot)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.do(t, http.MethodGet, "/api/v1/graph/export?format=svg", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<svg")

	resp, _ = f.do(t, http.MethodGet, "/api/v1/graph/export?format=gif", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Simulate(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/simulate", map[string]any{
		"scenario_text":      "what if helios acquires quantum",
		"companies_involved": []string{"helios", "quantum"},
		"deal_type":          "acquisition",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var simResp struct {
		Data simulation.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &simResp))
	assert.InDelta(t, 0.6, simResp.Data.Confidence, 1e-9)

	// Scenario text below the minimum length fails validation.
	resp, _ = f.do(t, http.MethodPost, "/api/v1/simulate", map[string]any{
		"scenario_text":      "no",
		"companies_involved": []string{"helios"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_RefreshPredictions(t *testing.T) {
	f := newAPIFixture(t)
	_, _ = f.do(t, http.MethodPost, "/api/v1/deals", ingestBody("d1", "helios", "quantum"))

	resp, body := f.do(t, http.MethodPost, "/api/v1/predictions/refresh", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
}
