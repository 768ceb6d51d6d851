package viewport

import (
	"math"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
)

// edgeHitTolerance is the pick distance for edges in world units at
// scale 1; it shrinks as the user zooms in.
const edgeHitTolerance = 6.0

// hitNode returns the company under the world point, or nil. When dots
// overlap the nearest center wins, which matches what the eye treats
// as "topmost".
func hitNode(snap *aggregates.GraphSnapshot, wx, wy float64) *entities.Company {
	var best *entities.Company
	bestDist := math.MaxFloat64

	snap.EachCompany(func(c *entities.Company) bool {
		pos := c.Position()
		dx := pos.X() - wx
		dy := pos.Y() - wy
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist <= c.Radius() && dist < bestDist {
			best = c
			bestDist = dist
		}
		return true
	})
	return best
}

// hitEdge returns the deal whose segment passes closest to the world
// point within tolerance, or nil.
func hitEdge(snap *aggregates.GraphSnapshot, wx, wy, scale float64) *entities.Deal {
	tol := edgeHitTolerance / math.Max(scale, 0.01)
	var best *entities.Deal
	bestDist := tol

	snap.EachDeal(func(d *entities.Deal) bool {
		src, ok := snap.Company(d.SourceID())
		if !ok {
			return true
		}
		dst, ok := snap.Company(d.TargetID())
		if !ok {
			return true
		}
		dist := pointSegmentDistance(wx, wy,
			src.Position().X(), src.Position().Y(),
			dst.Position().X(), dst.Position().Y(),
		)
		if dist <= bestDist {
			best = d
			bestDist = dist
		}
		return true
	})
	return best
}

func pointSegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-x1, py-y1)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}
