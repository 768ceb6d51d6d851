package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"dealgraph/application/services"
	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/engine/layout"
	"dealgraph/engine/render"
	"dealgraph/engine/viewport"
	pkgerrors "dealgraph/pkg/errors"

	"go.uber.org/zap"
)

const (
	exportWidth     = 1600.0
	exportHeight    = 1000.0
	exportMargin    = 60.0
	maxSettleSteps  = 600
	maxExportPixels = 4000.0
)

// ExportHandler renders the current graph to a static image. The server
// does not run the interactive frame loop, so each export settles a
// private copy of the graph before drawing it.
type ExportHandler struct {
	graphs *services.GraphService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger

	// settling is CPU heavy; one export at a time keeps the API responsive
	mu sync.Mutex
}

// NewExportHandler creates a new export handler
func NewExportHandler(graphs *services.GraphService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{graphs: graphs, errors: errors, logger: logger}
}

// Export handles GET /graph/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	width, height := exportWidth, exportHeight
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err = parseDimension(raw)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
	}
	if raw := r.URL.Query().Get("height"); raw != "" {
		height, err = parseDimension(raw)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
	}

	showPredictions := true
	if raw := r.URL.Query().Get("predictions"); raw != "" {
		parsed, perr := strconv.ParseBool(raw)
		if perr != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("predictions must be a boolean"))
			return
		}
		showPredictions = parsed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Snapshot returns a detached copy, so settling it never disturbs
	// the entities the feed service is serving.
	snap := h.graphs.Snapshot()
	settle(snap)

	vp := viewport.New(width, height, 0.05, 20)
	vp.Fit(bounds(snap, exportMargin))

	scene := render.BuildScene(snap, vp, render.Options{
		ShowPredictions: showPredictions,
		ShowLabels:      true,
		ShowLegend:      true,
	})

	w.Header().Set("Content-Type", format.ContentType())
	if err := render.Export(w, scene, format); err != nil {
		h.logger.Error("graph export failed", zap.Error(err), zap.String("format", string(format)))
	}
}

func parseDimension(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 100 || v > maxExportPixels {
		return 0, pkgerrors.NewValidationError("dimensions must be between 100 and 4000 pixels")
	}
	return v, nil
}

func settle(snap *aggregates.GraphSnapshot) {
	eng := layout.New(layout.DefaultTuning(), zap.NewNop())
	eng.Reheat(1)
	for i := 0; i < maxSettleSteps; i++ {
		if !eng.Step(snap) {
			return
		}
	}
}

func bounds(snap *aggregates.GraphSnapshot, margin float64) (minX, minY, maxX, maxY, m float64) {
	first := true
	snap.EachCompany(func(c *entities.Company) bool {
		p, r := c.Position(), c.Radius()
		px, py := p.X(), p.Y()
		if first {
			minX, minY, maxX, maxY = px-r, py-r, px+r, py+r
			first = false
			return true
		}
		if px-r < minX {
			minX = px - r
		}
		if py-r < minY {
			minY = py - r
		}
		if px+r > maxX {
			maxX = px + r
		}
		if py+r > maxY {
			maxY = py + r
		}
		return true
	})
	return minX, minY, maxX, maxY, margin
}
