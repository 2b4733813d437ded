// Package crs reprojects geographic (EPSG:4326) geometries into a projected
// coordinate reference so that intersection, containment, and distance tests
// are metrically meaningful. Spatial predicates must never run on raw
// latitude/longitude coordinates.
package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Projection is a transverse Mercator projection on the GRS80 ellipsoid.
type Projection struct {
	EPSG         int
	a            float64 // semi-major axis
	f            float64 // flattening
	originLatDeg float64
	originLonDeg float64
	k0           float64 // central meridian scale factor
	falseEast    float64
	falseNorth   float64
}

// NZTM2000 returns the New Zealand Transverse Mercator 2000 projection
// (EPSG:2193).
func NZTM2000() Projection {
	return Projection{
		EPSG:         2193,
		a:            6378137.0,
		f:            1.0 / 298.257222101,
		originLatDeg: 0,
		originLonDeg: 173,
		k0:           0.9996,
		falseEast:    1600000,
		falseNorth:   10000000,
	}
}

// ForEPSG returns the projection for a supported EPSG code.
func ForEPSG(code int) (Projection, error) {
	switch code {
	case 2193:
		return NZTM2000(), nil
	default:
		return Projection{}, eris.Errorf("crs: unsupported projected EPSG %d", code)
	}
}

// Project converts a geographic lon/lat pair (degrees) into projected
// easting/northing metres using the standard transverse Mercator series
// expansion (OGP guidance note 7-2 form, sub-millimetre within the zone).
func (p Projection) Project(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	lam := (lon - p.originLonDeg) * math.Pi / 180

	e2 := 2*p.f - p.f*p.f
	ep2 := e2 / (1 - e2)

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	nu := p.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cosPhi * cosPhi
	aa := lam * cosPhi

	m := p.meridianArc(phi)
	m0 := p.meridianArc(p.originLatDeg * math.Pi / 180)

	x = p.falseEast + p.k0*nu*(aa+
		(1-t+c)*math.Pow(aa, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(aa, 5)/120)
	y = p.falseNorth + p.k0*(m-m0+nu*math.Tan(phi)*(aa*aa/2+
		(5-t+9*c+4*c*c)*math.Pow(aa, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(aa, 6)/720))
	return x, y
}

// meridianArc returns the ellipsoidal meridian arc length from the equator.
func (p Projection) meridianArc(phi float64) float64 {
	e2 := 2*p.f - p.f*p.f
	e4 := e2 * e2
	e6 := e4 * e2
	return p.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// ProjectGeom returns a projected copy of g. The input is not mutated.
// Unsupported geometry types return an error rather than passing geographic
// coordinates through silently.
func (p Projection) ProjectGeom(g geom.T) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride())), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride())), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride())), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride()), t.Ends()), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride()), t.Ends()), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), p.projectFlat(t.FlatCoords(), t.Layout().Stride()), t.Endss()), nil
	default:
		return nil, eris.Errorf("crs: cannot project geometry type %T", g)
	}
}

func (p Projection) projectFlat(fc []float64, stride int) []float64 {
	out := make([]float64, len(fc))
	copy(out, fc)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = p.Project(out[i], out[i+1])
	}
	return out
}
