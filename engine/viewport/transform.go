// Package viewport implements the interaction layer: the pan/zoom
// transform over the whole scene and the pointer state machine for
// drag, click-select and hover-highlight. The transform is independent
// of node positions, so zooming never disturbs layout state.
package viewport

import "math"

// Transform is the scene's affine transform: uniform scale then
// translation, both in screen units.
type Transform struct {
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
	Scale float64 `json:"scale"`
}

// Identity returns the untransformed view
func Identity() Transform {
	return Transform{Scale: 1}
}

// ToScreen maps a world coordinate to screen space
func (t Transform) ToScreen(wx, wy float64) (sx, sy float64) {
	return wx*t.Scale + t.TX, wy*t.Scale + t.TY
}

// ToWorld maps a screen coordinate to world space
func (t Transform) ToWorld(sx, sy float64) (wx, wy float64) {
	return (sx - t.TX) / t.Scale, (sy - t.TY) / t.Scale
}

// Viewport owns the scene transform and its zoom bounds
type Viewport struct {
	t       Transform
	width   float64
	height  float64
	minZoom float64
	maxZoom float64
}

// New creates a viewport centered on the world origin
func New(width, height, minZoom, maxZoom float64) *Viewport {
	if minZoom <= 0 {
		minZoom = 0.1
	}
	if maxZoom < minZoom {
		maxZoom = minZoom * 40
	}
	return &Viewport{
		t:       Transform{TX: width / 2, TY: height / 2, Scale: 1},
		width:   width,
		height:  height,
		minZoom: minZoom,
		maxZoom: maxZoom,
	}
}

// Transform returns the current scene transform
func (v *Viewport) Transform() Transform {
	return v.t
}

// Size returns the viewport dimensions in screen units
func (v *Viewport) Size() (w, h float64) {
	return v.width, v.height
}

// Resize updates the viewport dimensions, keeping the world point at
// the old center fixed at the new center.
func (v *Viewport) Resize(width, height float64) {
	cx, cy := v.t.ToWorld(v.width/2, v.height/2)
	v.width = width
	v.height = height
	sx, sy := v.t.ToScreen(cx, cy)
	v.t.TX += width/2 - sx
	v.t.TY += height/2 - sy
}

// Pan shifts the view by a screen-space offset
func (v *Viewport) Pan(dx, dy float64) {
	v.t.TX += dx
	v.t.TY += dy
}

// ZoomAt scales the view by factor, clamped to the configured bounds,
// keeping the world point under the given screen position fixed.
func (v *Viewport) ZoomAt(factor, sx, sy float64) {
	next := clamp(v.t.Scale*factor, v.minZoom, v.maxZoom)
	if next == v.t.Scale {
		return
	}
	wx, wy := v.t.ToWorld(sx, sy)
	v.t.Scale = next
	v.t.TX = sx - wx*next
	v.t.TY = sy - wy*next
}

// Fit frames the given world-space bounds inside the viewport with the
// given margin in screen units, clamped to the zoom bounds. Degenerate
// bounds fall back to a reset view.
func (v *Viewport) Fit(minX, minY, maxX, maxY, margin float64) {
	bw, bh := maxX-minX, maxY-minY
	if bw <= 0 && bh <= 0 {
		v.Reset()
		return
	}
	usableW := math.Max(v.width-2*margin, 1)
	usableH := math.Max(v.height-2*margin, 1)
	scale := math.Min(usableW/math.Max(bw, 1), usableH/math.Max(bh, 1))
	scale = clamp(scale, v.minZoom, v.maxZoom)
	cx, cy := minX+bw/2, minY+bh/2
	v.t = Transform{
		TX:    v.width/2 - cx*scale,
		TY:    v.height/2 - cy*scale,
		Scale: scale,
	}
}

// Reset recenters and restores 1:1 scale
func (v *Viewport) Reset() {
	v.t = Transform{TX: v.width / 2, TY: v.height / 2, Scale: 1}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
