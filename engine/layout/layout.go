// Package layout is the force-directed position solver. One Step is a
// single cooperative tick: it computes repulsion, link attraction,
// collision and centering for every free node, integrates velocities,
// and cools. The engine loop calls Step once per frame until the solver
// settles, and reheats it whenever the graph or the interaction state
// changes.
package layout

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
)

// Reheat targets. Structural deltas get a gentle partial re-settle;
// a full replace or the first layout of a graph starts hot.
const (
	AlphaFull    = 1.0
	AlphaPartial = 0.3
	AlphaDrag    = 0.12
)

// Engine is the per-graph solver state. Not safe for concurrent use;
// the engine loop owns it.
type Engine struct {
	tuning Tuning
	alpha  float64
	steps  uint64
	logger *zap.Logger

	// Scratch buffers reused across steps to stay allocation-light
	nodes []*entities.Company
	xs    []float64
	ys    []float64
	fx    []float64
	fy    []float64
}

// New creates a solver with the given tuning, starting hot
func New(tuning Tuning, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tuning: tuning.sanitize(),
		alpha:  AlphaFull,
		logger: logger,
	}
}

// Alpha returns the current cooling parameter
func (e *Engine) Alpha() float64 {
	return e.alpha
}

// Steps returns the number of non-settled steps performed
func (e *Engine) Steps() uint64 {
	return e.steps
}

// Settled reports whether the solver has cooled below its threshold
func (e *Engine) Settled() bool {
	return e.alpha < e.tuning.AlphaMin
}

// Reheat raises alpha to at least target, resuming settling without a
// cold restart. Lower targets give smaller visual disruption.
func (e *Engine) Reheat(target float64) {
	if target > e.alpha {
		e.alpha = target
	}
}

// SetTuning swaps solver parameters between steps and partially reheats
// so the new forces take visible effect.
func (e *Engine) SetTuning(t Tuning) {
	e.tuning = t.sanitize()
	e.Reheat(AlphaPartial)
}

// Tuning returns the active parameters
func (e *Engine) Tuning() Tuning {
	return e.tuning
}

// Step advances the simulation by one tick over the given snapshot.
// Pinned nodes contribute forces but are never moved. Returns false
// when the solver is settled and did no work.
func (e *Engine) Step(snap *aggregates.GraphSnapshot) bool {
	if e.Settled() || snap == nil || snap.Metadata().NodeCount == 0 {
		return false
	}

	e.gather(snap)
	n := len(e.nodes)

	e.applyRepulsion(n)
	e.applySprings(snap)
	e.applyCentering(n)
	e.integrate(n)
	e.resolveCollisions(n)

	e.alpha *= 1 - e.tuning.AlphaDecay
	e.steps++
	return true
}

// gather flattens the snapshot into index-aligned scratch slices,
// sorted by ID so steps are deterministic regardless of map order.
func (e *Engine) gather(snap *aggregates.GraphSnapshot) {
	e.nodes = e.nodes[:0]
	snap.EachCompany(func(c *entities.Company) bool {
		e.nodes = append(e.nodes, c)
		return true
	})
	sort.Slice(e.nodes, func(i, j int) bool {
		return e.nodes[i].ID().String() < e.nodes[j].ID().String()
	})

	n := len(e.nodes)
	e.xs = resize(e.xs, n)
	e.ys = resize(e.ys, n)
	e.fx = resize(e.fx, n)
	e.fy = resize(e.fy, n)
	for i, c := range e.nodes {
		pos := c.Position()
		e.xs[i] = pos.X()
		e.ys[i] = pos.Y()
		e.fx[i] = 0
		e.fy[i] = 0
	}
}

// applyRepulsion runs many-body repulsion, all-pairs for small graphs
// and Barnes-Hut above the configured threshold.
func (e *Engine) applyRepulsion(n int) {
	strength := e.tuning.ChargeStrength * e.alpha
	minDist := e.tuning.MinDistance

	if n > e.tuning.BarnesHutThreshold {
		qt := newQuadtree(e.tuning.BarnesHutTheta)
		qt.build(e.xs, e.ys)
		for i := 0; i < n; i++ {
			dx, dy := qt.force(e.xs[i], e.ys[i], strength, minDist, i)
			e.fx[i] += dx
			e.fy[i] += dy
		}
		return
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := e.xs[i] - e.xs[j]
			dy := e.ys[i] - e.ys[j]
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist == 0 {
				// Coincident: separate along a fixed axis
				dx, dist = minDist, minDist
			}
			d := math.Max(dist, minDist)
			f := strength / (d * d)
			ux := dx / dist
			uy := dy / dist
			e.fx[i] += f * ux
			e.fy[i] += f * uy
			e.fx[j] -= f * ux
			e.fy[j] -= f * uy
		}
	}
}

// applySprings pulls edge endpoints toward a rest length that shrinks
// as deal weight grows: bigger deals sit closer together.
func (e *Engine) applySprings(snap *aggregates.GraphSnapshot) {
	index := make(map[valueobjects.CompanyID]int, len(e.nodes))
	for i, c := range e.nodes {
		index[c.ID()] = i
	}

	strength := e.tuning.SpringStrength * e.alpha
	snap.EachDeal(func(d *entities.Deal) bool {
		si, ok := index[d.SourceID()]
		if !ok {
			return true
		}
		ti, ok := index[d.TargetID()]
		if !ok {
			return true
		}

		dx := e.xs[ti] - e.xs[si]
		dy := e.ys[ti] - e.ys[si]
		dist := math.Max(math.Sqrt(dx*dx+dy*dy), e.tuning.MinDistance)
		rest := e.tuning.SpringBaseLength / math.Sqrt(d.Weight())
		f := strength * (dist - rest) / dist

		e.fx[si] += f * dx
		e.fy[si] += f * dy
		e.fx[ti] -= f * dx
		e.fy[ti] -= f * dy
		return true
	})
}

// applyCentering adds the weak pull toward the origin
func (e *Engine) applyCentering(n int) {
	g := e.tuning.CenterGravity * e.alpha
	for i := 0; i < n; i++ {
		e.fx[i] -= e.xs[i] * g
		e.fy[i] -= e.ys[i] * g
	}
}

// integrate folds forces into velocities and velocities into positions
// for free nodes. Any non-finite candidate is rejected: the node keeps
// its previous position and its velocity is zeroed.
func (e *Engine) integrate(n int) {
	keep := 1 - e.tuning.VelocityDecay
	for i := 0; i < n; i++ {
		c := e.nodes[i]
		if c.Pinned() {
			continue
		}

		v := c.Velocity()
		v.DX = (v.DX + e.fx[i]) * keep
		v.DY = (v.DY + e.fy[i]) * keep

		if mag := v.Magnitude(); mag > e.tuning.MaxVelocity {
			scale := e.tuning.MaxVelocity / mag
			v.DX *= scale
			v.DY *= scale
		}

		if !v.IsFinite() {
			e.logger.Warn("rejecting non-finite velocity",
				zap.String("company_id", c.ID().String()),
			)
			_ = c.SetVelocity(valueobjects.Velocity{})
			continue
		}

		if err := c.MoveTo(e.xs[i]+v.DX, e.ys[i]+v.DY); err != nil {
			// Previous position retained; kill the velocity that caused it
			e.logger.Warn("rejecting non-finite position",
				zap.String("company_id", c.ID().String()),
			)
			_ = c.SetVelocity(valueobjects.Velocity{})
			continue
		}
		_ = c.SetVelocity(v)
		pos := c.Position()
		e.xs[i] = pos.X()
		e.ys[i] = pos.Y()
	}
}

// resolveCollisions enforces minimum separation from visual radii after
// the force pass, splitting the correction between free endpoints.
func (e *Engine) resolveCollisions(n int) {
	pad := e.tuning.CollidePadding
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			minSep := e.nodes[i].Radius() + e.nodes[j].Radius() + pad
			dx := e.xs[j] - e.xs[i]
			dy := e.ys[j] - e.ys[i]
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist >= minSep {
				continue
			}
			if dist == 0 {
				dx, dist = e.tuning.MinDistance, e.tuning.MinDistance
			}

			overlap := (minSep - dist) / dist
			pushX := dx * overlap
			pushY := dy * overlap

			iPinned := e.nodes[i].Pinned()
			jPinned := e.nodes[j].Pinned()
			switch {
			case iPinned && jPinned:
				// Both fixed by the user; leave the overlap alone
			case iPinned:
				e.shift(j, pushX, pushY)
			case jPinned:
				e.shift(i, -pushX, -pushY)
			default:
				e.shift(i, -pushX/2, -pushY/2)
				e.shift(j, pushX/2, pushY/2)
			}
		}
	}
}

func (e *Engine) shift(i int, dx, dy float64) {
	if err := e.nodes[i].MoveTo(e.xs[i]+dx, e.ys[i]+dy); err != nil {
		return
	}
	e.xs[i] += dx
	e.ys[i] += dy
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
