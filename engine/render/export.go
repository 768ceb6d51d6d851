package render

import (
	"io"
	"math"

	// Blank import registers the Liberation fonts in font.DefaultCache,
	// which labelFace relies on.
	_ "gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	pkgerrors "dealgraph/pkg/errors"
)

// ExportFormat selects the export backend
type ExportFormat string

const (
	FormatSVG ExportFormat = "svg"
	FormatPNG ExportFormat = "png"
)

// ParseFormat maps a request parameter to a format, defaulting to SVG
func ParseFormat(s string) (ExportFormat, error) {
	switch s {
	case "", "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", pkgerrors.NewValidationError("unsupported export format: " + s)
	}
}

// ContentType returns the MIME type served for the format
func (f ExportFormat) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Export rasterizes a scene. Scene coordinates are treated as points
// one-to-one; the canvas Y axis points up, so everything is flipped
// against the scene height.
func Export(w io.Writer, scene *Scene, format ExportFormat) error {
	width := vg.Length(scene.Width)
	height := vg.Length(scene.Height)
	if width <= 0 || height <= 0 {
		return pkgerrors.NewValidationError("scene has no area to export")
	}

	switch format {
	case FormatPNG:
		c := vgimg.New(width, height)
		paint(c, scene)
		png := vgimg.PngCanvas{Canvas: c}
		if _, err := png.WriteTo(w); err != nil {
			return pkgerrors.NewInternalError("png encode failed").WithCause(err)
		}
		return nil
	case FormatSVG:
		c := vgsvg.New(width, height)
		paint(c, scene)
		if _, err := c.WriteTo(w); err != nil {
			return pkgerrors.NewInternalError("svg encode failed").WithCause(err)
		}
		return nil
	default:
		return pkgerrors.NewValidationError("unsupported export format")
	}
}

func paint(c vg.Canvas, scene *Scene) {
	h := vg.Length(scene.Height)
	flip := func(y float64) vg.Length { return h - vg.Length(y) }

	// Background
	c.SetColor(scene.Background)
	var bg vg.Path
	bg.Move(vg.Point{X: 0, Y: 0})
	bg.Line(vg.Point{X: vg.Length(scene.Width), Y: 0})
	bg.Line(vg.Point{X: vg.Length(scene.Width), Y: h})
	bg.Line(vg.Point{X: 0, Y: h})
	bg.Close()
	c.Fill(bg)

	for _, e := range scene.Edges {
		c.SetColor(e.Color)
		c.SetLineWidth(vg.Length(e.Width))
		if e.Dashed {
			c.SetLineDash([]vg.Length{dashOn, dashOff}, 0)
		} else {
			c.SetLineDash(nil, 0)
		}
		var p vg.Path
		p.Move(vg.Point{X: vg.Length(e.X1), Y: flip(e.Y1)})
		p.Line(vg.Point{X: vg.Length(e.X2), Y: flip(e.Y2)})
		c.Stroke(p)
	}
	c.SetLineDash(nil, 0)

	for _, n := range scene.Nodes {
		center := vg.Point{X: vg.Length(n.X), Y: flip(n.Y)}
		r := vg.Length(n.Radius)

		c.SetColor(n.Fill)
		c.Fill(circlePath(center, r))

		c.SetColor(n.Stroke)
		c.SetLineWidth(vg.Length(n.StrokeWidth))
		c.Stroke(circlePath(center, r))

		if n.Ring != nil {
			c.SetColor(*n.Ring)
			c.SetLineWidth(ringWidth)
			c.Stroke(circlePath(center, r+ringWidth))
		}
	}

	face := labelFace(11)
	c.SetColor(labelColor)
	for _, l := range scene.Labels {
		f := face
		if l.Size > 0 {
			f = labelFace(vg.Length(l.Size))
		}
		// Center the label over its anchor point
		width := f.Width(l.Text)
		c.FillString(f, vg.Point{X: vg.Length(l.X) - width/2, Y: flip(l.Y)}, l.Text)
	}

	for _, entry := range scene.Legend {
		c.SetColor(entry.Color)
		var sw vg.Path
		x := vg.Length(entry.X)
		y := flip(entry.Y + legendSwatchSize)
		sw.Move(vg.Point{X: x, Y: y})
		sw.Line(vg.Point{X: x + legendSwatchSize, Y: y})
		sw.Line(vg.Point{X: x + legendSwatchSize, Y: y + legendSwatchSize})
		sw.Line(vg.Point{X: x, Y: y + legendSwatchSize})
		sw.Close()
		c.Fill(sw)

		c.SetColor(labelColor)
		c.FillString(face, vg.Point{X: x + legendSwatchSize + 6, Y: y + 1}, entry.Caption)
	}
}

func circlePath(center vg.Point, r vg.Length) vg.Path {
	var p vg.Path
	p.Move(vg.Point{X: center.X + r, Y: center.Y})
	p.Arc(center, r, 0, 2*math.Pi)
	p.Close()
	return p
}

func labelFace(size vg.Length) font.Face {
	return font.DefaultCache.Lookup(font.Font{Typeface: "Liberation", Variant: "Sans"}, size)
}
