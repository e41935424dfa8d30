package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/apexline/simcore/pkg/core"
)

// Corridor is the legal driving path: a route polyline with a tolerance
// half-width either side of it, all in degrees. Immutable once built.
type Corridor struct {
	points    []geom.XY
	halfWidth float64
}

// NewCorridor builds a corridor from route waypoints. A corridor with
// fewer than two points never reports an excursion.
func NewCorridor(waypoints []core.GeoPoint, halfWidth float64) *Corridor {
	pts := make([]geom.XY, len(waypoints))
	for i, wp := range waypoints {
		pts[i] = XY(wp)
	}
	return &Corridor{points: pts, halfWidth: halfWidth}
}

// HalfWidth returns the corridor tolerance in degrees.
func (c *Corridor) HalfWidth() float64 {
	return c.halfWidth
}

// Bounded reports whether the corridor has enough points to enforce.
func (c *Corridor) Bounded() bool {
	return len(c.points) >= 2
}

// closestOnSegment projects p onto the segment a-b, clamping the
// parametric position to [0,1]. A zero-length segment degenerates to the
// point a.
func closestOnSegment(p, a, b geom.XY) geom.XY {
	ab := b.Sub(a)
	denom := ab.Dot(ab)
	if denom == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(ab.Scale(t))
}

// MinDistance returns the smallest distance in degrees from p to any
// segment of the route polyline. The second return is false when the
// corridor is unbounded.
func (c *Corridor) MinDistance(p geom.XY) (float64, bool) {
	if !c.Bounded() {
		return 0, false
	}
	min := p.Sub(closestOnSegment(p, c.points[0], c.points[1])).Length()
	for i := 1; i < len(c.points)-1; i++ {
		d := p.Sub(closestOnSegment(p, c.points[i], c.points[i+1])).Length()
		if d < min {
			min = d
		}
	}
	return min, true
}

// Contains reports whether p lies within the corridor tolerance. An
// unbounded corridor contains everything.
func (c *Corridor) Contains(p geom.XY) bool {
	d, bounded := c.MinDistance(p)
	if !bounded {
		return true
	}
	return d <= c.halfWidth
}
