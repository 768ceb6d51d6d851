// Package render turns a graph snapshot plus view state into a flat
// display list. Building the scene is pure: no store access, no
// mutation, so it can run on the engine loop and be handed to any
// backend (the SVG/PNG exporter here, or a caller's own rasterizer).
package render

import (
	"fmt"
	"image/color"
	"sort"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/engine/viewport"
)

// Labels are unreadable when zoomed far out, so they are culled below
// this scale.
const labelZoomThreshold = 0.6

const (
	edgeBaseWidth      = 1.0
	edgeWeightWidth    = 0.75
	nodeStrokeWidth    = 1.5
	ringWidth          = 2.5
	predictedMinAlpha  = 0.25
	dashOn, dashOff    = 6.0, 4.0
	labelOffsetY       = 4.0
	legendSwatchSize   = 10.0
	legendRowHeight    = 18.0
	legendMarginX      = 16.0
	legendMarginY      = 16.0
	overlayNodeOpacity = 0.8
)

// Options select what the scene contains
type Options struct {
	ShowPredictions bool
	ShowLabels      bool
	ShowLegend      bool

	// Selection and hover, from the pointer state machine
	Selection viewport.Selection
	Highlight *valueobjects.CompanyID

	// Overlay decoration
	AffectedNodes map[valueobjects.CompanyID]struct{}
	IsOverlayNode func(valueobjects.CompanyID) bool
}

// EdgeStroke is one deal rendered as a line between node centers
type EdgeStroke struct {
	ID         valueobjects.DealID
	X1, Y1     float64
	X2, Y2     float64
	Width      float64
	Color      color.NRGBA
	Dashed     bool
	Selected   bool
	Predicted  bool
	Confidence float64
}

// NodeCircle is one company rendered as a filled disc
type NodeCircle struct {
	ID          valueobjects.CompanyID
	X, Y        float64
	Radius      float64
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	Ring        *color.NRGBA
	Overlay     bool
}

// Label is node text drawn above its circle
type Label struct {
	Text string
	X, Y float64
	Size float64
}

// LegendEntry is one swatch+caption row
type LegendEntry struct {
	Caption string
	Color   color.NRGBA
	X, Y    float64
}

// Scene is the full display list for one frame, in paint order:
// edges under nodes under labels under legend.
type Scene struct {
	Width, Height float64
	Background    color.NRGBA
	Edges         []EdgeStroke
	Nodes         []NodeCircle
	Labels        []Label
	Legend        []LegendEntry
}

// BuildScene projects the snapshot through the viewport transform into
// screen space. Edges with a missing endpoint are skipped rather than
// drawn dangling.
func BuildScene(snap *aggregates.GraphSnapshot, vp *viewport.Viewport, opts Options) *Scene {
	t := vp.Transform()
	w, h := vp.Size()
	meta := snap.Metadata()

	scene := &Scene{
		Width:      w,
		Height:     h,
		Background: backgroundColor,
		Edges:      make([]EdgeStroke, 0, meta.EdgeCount),
		Nodes:      make([]NodeCircle, 0, meta.NodeCount),
	}

	snap.EachDeal(func(d *entities.Deal) bool {
		if d.IsPredicted() && !opts.ShowPredictions {
			return true
		}
		src, ok := snap.Company(d.SourceID())
		if !ok {
			return true
		}
		dst, ok := snap.Company(d.TargetID())
		if !ok {
			return true
		}

		sp, dp := src.Position(), dst.Position()
		x1, y1 := t.ToScreen(sp.X(), sp.Y())
		x2, y2 := t.ToScreen(dp.X(), dp.Y())

		stroke := EdgeStroke{
			ID:     d.ID(),
			X1:     x1, Y1: y1,
			X2:     x2, Y2: y2,
			Width:  (edgeBaseWidth + edgeWeightWidth*d.Weight()) * t.Scale,
			Color:  DealColor(d.Type()),
			Dashed: d.IsPredicted(),
		}
		if d.IsPredicted() {
			stroke.Predicted = true
			stroke.Confidence = d.Confidence()
			alpha := predictedMinAlpha + (1-predictedMinAlpha)*d.Confidence()
			stroke.Color = withAlpha(stroke.Color, alpha)
		}
		if opts.Selection.Kind == viewport.SelectDeal && opts.Selection.DealID.Equals(d.ID()) {
			stroke.Selected = true
			stroke.Width += ringWidth
		}
		scene.Edges = append(scene.Edges, stroke)
		return true
	})

	snap.EachCompany(func(c *entities.Company) bool {
		pos := c.Position()
		sx, sy := t.ToScreen(pos.X(), pos.Y())

		circle := NodeCircle{
			ID:          c.ID(),
			X:           sx,
			Y:           sy,
			Radius:      c.Radius() * t.Scale,
			Fill:        SectorColor(c.ColorKey()),
			Stroke:      backgroundColor,
			StrokeWidth: nodeStrokeWidth,
		}
		if opts.IsOverlayNode != nil && opts.IsOverlayNode(c.ID()) {
			circle.Overlay = true
			circle.Fill = withAlpha(circle.Fill, overlayNodeOpacity)
		}
		if opts.AffectedNodes != nil {
			if _, ok := opts.AffectedNodes[c.ID()]; ok {
				ring := overlayGlow
				circle.Ring = &ring
			}
		}
		if opts.Highlight != nil && opts.Highlight.Equals(c.ID()) {
			ring := highlightRing
			circle.Ring = &ring
		}
		if opts.Selection.Kind == viewport.SelectCompany && opts.Selection.CompanyID.Equals(c.ID()) {
			ring := selectionRing
			circle.Ring = &ring
		}
		scene.Nodes = append(scene.Nodes, circle)

		if opts.ShowLabels && t.Scale >= labelZoomThreshold {
			scene.Labels = append(scene.Labels, Label{
				Text: c.Label(),
				X:    sx,
				Y:    sy - circle.Radius - labelOffsetY,
				Size: 11 * t.Scale,
			})
		}
		return true
	})

	// Deterministic paint order regardless of map iteration
	sort.Slice(scene.Edges, func(i, j int) bool {
		return scene.Edges[i].ID.String() < scene.Edges[j].ID.String()
	})
	sort.Slice(scene.Nodes, func(i, j int) bool {
		return scene.Nodes[i].ID.String() < scene.Nodes[j].ID.String()
	})
	sort.Slice(scene.Labels, func(i, j int) bool {
		if scene.Labels[i].Y != scene.Labels[j].Y {
			return scene.Labels[i].Y < scene.Labels[j].Y
		}
		return scene.Labels[i].Text < scene.Labels[j].Text
	})

	if opts.ShowLegend {
		scene.Legend = buildLegend(snap, w)
	}
	return scene
}

// buildLegend lists only the sectors present in the snapshot, top-right
func buildLegend(snap *aggregates.GraphSnapshot, width float64) []LegendEntry {
	present := make(map[string]struct{})
	snap.EachCompany(func(c *entities.Company) bool {
		present[c.ColorKey()] = struct{}{}
		return true
	})

	keys := make([]string, 0, len(present))
	for k := range present {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]LegendEntry, 0, len(keys))
	for i, k := range keys {
		entries = append(entries, LegendEntry{
			Caption: k,
			Color:   SectorColor(k),
			X:       width - legendMarginX - 110,
			Y:       legendMarginY + float64(i)*legendRowHeight,
		})
	}
	return entries
}

// Stats returns a short human-readable frame summary used by the
// viewer's status line.
func (s *Scene) Stats() string {
	return fmt.Sprintf("%d nodes, %d edges, %d labels", len(s.Nodes), len(s.Edges), len(s.Labels))
}
