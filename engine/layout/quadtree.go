package layout

import "math"

// quadtree is a Barnes-Hut accumulator over node positions. Built once
// per step when the graph is large enough to make all-pairs repulsion
// a frame-budget problem.
type quadtree struct {
	root  *quadCell
	theta float64
}

type quadCell struct {
	x0, y0, x1, y1 float64
	// Aggregate mass and center of mass of everything under this cell
	mass, cx, cy float64
	children     *[4]*quadCell
	// Leaf payload: index into the step's node slice, -1 when empty
	point  int
	px, py float64
}

const maxQuadDepth = 32

func newQuadtree(theta float64) *quadtree {
	return &quadtree{theta: theta}
}

func (t *quadtree) build(xs, ys []float64) {
	if len(xs) == 0 {
		t.root = nil
		return
	}

	minX, minY := xs[0], ys[0]
	maxX, maxY := xs[0], ys[0]
	for i := range xs {
		minX = math.Min(minX, xs[i])
		minY = math.Min(minY, ys[i])
		maxX = math.Max(maxX, xs[i])
		maxY = math.Max(maxY, ys[i])
	}
	// Square bounds keep the four quadrants congruent
	side := math.Max(maxX-minX, maxY-minY)
	if side == 0 {
		side = 1
	}

	t.root = &quadCell{x0: minX, y0: minY, x1: minX + side, y1: minY + side, point: -1}
	for i := range xs {
		t.insert(t.root, i, xs[i], ys[i], 0)
	}
}

func (t *quadtree) insert(c *quadCell, idx int, x, y float64, depth int) {
	// Running center of mass
	c.mass++
	c.cx += (x - c.cx) / c.mass
	c.cy += (y - c.cy) / c.mass

	if c.children == nil {
		if c.point < 0 {
			c.point = idx
			c.px, c.py = x, y
			return
		}
		if depth >= maxQuadDepth || (c.px == x && c.py == y) {
			// Coincident or too deep: fold into this leaf's mass
			return
		}
		// Occupied leaf: split and push the resident point down
		old, ox, oy := c.point, c.px, c.py
		c.point = -1
		c.children = &[4]*quadCell{}
		t.insert(t.childFor(c, ox, oy), old, ox, oy, depth+1)
	}
	t.insert(t.childFor(c, x, y), idx, x, y, depth+1)
}

// childFor returns the quadrant cell containing (x, y), creating it on
// first use.
func (t *quadtree) childFor(c *quadCell, x, y float64) *quadCell {
	mx := (c.x0 + c.x1) / 2
	my := (c.y0 + c.y1) / 2
	q := 0
	x0, y0, x1, y1 := c.x0, c.y0, mx, my
	if x >= mx {
		q |= 1
		x0, x1 = mx, c.x1
	}
	if y >= my {
		q |= 2
		y0, y1 = my, c.y1
	}
	if c.children[q] == nil {
		c.children[q] = &quadCell{x0: x0, y0: y0, x1: x1, y1: y1, point: -1}
	}
	return c.children[q]
}

// force accumulates the approximate repulsion on point (x, y). self is
// the index of the querying node so its own leaf is skipped.
func (t *quadtree) force(x, y, strength, minDist float64, self int) (fx, fy float64) {
	if t.root == nil {
		return 0, 0
	}
	var walk func(c *quadCell)
	walk = func(c *quadCell) {
		if c == nil || c.mass == 0 {
			return
		}
		dx := x - c.cx
		dy := y - c.cy
		dist := math.Sqrt(dx*dx + dy*dy)
		width := c.x1 - c.x0

		if c.children != nil {
			if dist > 0 && width/dist < t.theta {
				// Far enough away: treat the whole cell as one body
				d := math.Max(dist, minDist)
				f := strength * c.mass / (d * d)
				fx += f * dx / d
				fy += f * dy / d
				return
			}
			for _, child := range c.children {
				walk(child)
			}
			return
		}

		if c.point == self {
			return
		}
		d := math.Max(dist, minDist)
		f := strength * c.mass / (d * d)
		if dist == 0 {
			// Coincident bodies: push along a fixed axis so they separate
			fx += f
			return
		}
		fx += f * dx / d
		fy += f * dy / d
	}
	walk(t.root)
	return fx, fy
}
