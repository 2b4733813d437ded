// Package spatial implements the planar predicates behind crime/route
// association. All inputs must already be in a projected coordinate
// reference (see internal/crs); nothing here is meaningful on raw lon/lat.
package spatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// ring is one closed boundary with its layout stride.
type ring struct {
	coords []float64
	stride int
}

// polygonPart is an outer shell plus interior holes.
type polygonPart struct {
	shell ring
	holes []ring
}

// polygonParts decomposes a Polygon or MultiPolygon into shell/hole ring sets.
func polygonParts(g geom.T) ([]polygonPart, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return []polygonPart{polygonToPart(t)}, nil
	case *geom.MultiPolygon:
		parts := make([]polygonPart, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, polygonToPart(t.Polygon(i)))
		}
		return parts, nil
	default:
		return nil, eris.Errorf("spatial: expected polygonal geometry, got %T", g)
	}
}

func polygonToPart(p *geom.Polygon) polygonPart {
	stride := p.Layout().Stride()
	part := polygonPart{}
	for i := 0; i < p.NumLinearRings(); i++ {
		r := ring{coords: p.LinearRing(i).FlatCoords(), stride: stride}
		if i == 0 {
			part.shell = r
		} else {
			part.holes = append(part.holes, r)
		}
	}
	return part
}

// pointCoords extracts the coordinates of a Point or MultiPoint area, for
// tiers that resolve to centroids instead of boundaries.
func pointCoords(g geom.T) ([]geom.Coord, bool) {
	switch t := g.(type) {
	case *geom.Point:
		fc := t.FlatCoords()
		if len(fc) < 2 {
			return nil, true
		}
		return []geom.Coord{{fc[0], fc[1]}}, true
	case *geom.MultiPoint:
		stride := t.Layout().Stride()
		fc := t.FlatCoords()
		coords := make([]geom.Coord, 0, len(fc)/stride)
		for i := 0; i+1 < len(fc); i += stride {
			coords = append(coords, geom.Coord{fc[i], fc[i+1]})
		}
		return coords, true
	default:
		return nil, false
	}
}

// lineParts decomposes a LineString or MultiLineString into its coordinate
// runs.
func lineParts(g geom.T) ([]ring, error) {
	switch t := g.(type) {
	case *geom.LineString:
		return []ring{{coords: t.FlatCoords(), stride: t.Layout().Stride()}}, nil
	case *geom.MultiLineString:
		parts := make([]ring, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			parts = append(parts, ring{coords: ls.FlatCoords(), stride: ls.Layout().Stride()})
		}
		return parts, nil
	default:
		return nil, eris.Errorf("spatial: expected lineal geometry, got %T", g)
	}
}

// ContainsPoint reports whether the area geometry contains the point.
// Points inside a hole do not count; points exactly on a boundary do. A
// point-kind area contains only a coincident point.
func ContainsPoint(area geom.T, pt geom.Coord) (bool, error) {
	if pts, ok := pointCoords(area); ok {
		for _, c := range pts {
			if c[0] == pt[0] && c[1] == pt[1] {
				return true, nil
			}
		}
		return false, nil
	}

	parts, err := polygonParts(area)
	if err != nil {
		return false, err
	}
	for _, part := range parts {
		if len(part.shell.coords) == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, pt, part.shell.coords) {
			continue
		}
		inHole := false
		for _, h := range part.holes {
			if xy.IsPointInRing(geom.XY, pt, h.coords) && !xy.IsOnLine(geom.XY, pt, h.coords) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true, nil
		}
	}
	return false, nil
}

// WithinDistanceOfLine reports whether the area geometry lies within d
// metres of the lineal geometry. d == 0 degenerates to an exact
// intersection test, which is the configuration used when no buffer is
// applied around the route line. A point-kind area matches when any of its
// points lies within d of the line (on the line when d is 0).
func WithinDistanceOfLine(area geom.T, line geom.T, d float64) (bool, error) {
	lines, err := lineParts(line)
	if err != nil {
		return false, err
	}

	if pts, ok := pointCoords(area); ok {
		return pointsWithinDistance(pts, lines, d), nil
	}

	parts, err := polygonParts(area)
	if err != nil {
		return false, err
	}

	// A line vertex strictly inside the polygon means intersection at any
	// distance, including a line wholly contained by the area.
	for _, l := range lines {
		for i := 0; i+1 < len(l.coords); i += l.stride {
			pt := geom.Coord{l.coords[i], l.coords[i+1]}
			inside, cerr := ContainsPoint(area, pt)
			if cerr != nil {
				return false, cerr
			}
			if inside {
				return true, nil
			}
		}
	}

	// Otherwise the minimum separation is realized between a line segment
	// and a boundary segment (shells and holes alike).
	intersector := lineintersector.RobustLineIntersector{}
	for _, part := range parts {
		boundaries := append([]ring{part.shell}, part.holes...)
		for _, b := range boundaries {
			for _, l := range lines {
				if segmentsWithinDistance(b, l, d, intersector) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// pointsWithinDistance reports whether any point lies within d of any line
// segment.
func pointsWithinDistance(pts []geom.Coord, lines []ring, d float64) bool {
	for _, l := range lines {
		for _, c := range pts {
			if d == 0 {
				if xy.IsOnLine(geom.XY, c, l.coords) {
					return true
				}
				continue
			}
			for i := 0; i+l.stride+1 < len(l.coords); i += l.stride {
				b0 := geom.Coord{l.coords[i], l.coords[i+1]}
				b1 := geom.Coord{l.coords[i+l.stride], l.coords[i+l.stride+1]}
				if xy.DistanceFromPointToLine(c, b0, b1) <= d {
					return true
				}
			}
		}
	}
	return false
}

// segmentsWithinDistance checks every segment pair between two coordinate
// runs. Exact crossings are detected with the robust intersector so that a
// zero buffer never depends on floating-point distance round-off.
func segmentsWithinDistance(a, b ring, d float64, intersector lineintersector.RobustLineIntersector) bool {
	for i := 0; i+a.stride+1 < len(a.coords); i += a.stride {
		a0 := geom.Coord{a.coords[i], a.coords[i+1]}
		a1 := geom.Coord{a.coords[i+a.stride], a.coords[i+a.stride+1]}
		for j := 0; j+b.stride+1 < len(b.coords); j += b.stride {
			b0 := geom.Coord{b.coords[j], b.coords[j+1]}
			b1 := geom.Coord{b.coords[j+b.stride], b.coords[j+b.stride+1]}
			res := lineintersector.LineIntersectsLine(intersector, a0, a1, b0, b1)
			if res.HasIntersection() {
				return true
			}
			if d > 0 && xy.DistanceFromLineToLine(a0, a1, b0, b1) <= d {
				return true
			}
		}
	}
	return false
}
