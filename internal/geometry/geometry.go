// Package geometry implements the AOI handling used across the pipeline:
// GeoJSON polygon parsing and validation, footprint intersection, and
// bounding boxes. All coordinates are WGS84.
package geometry

import (
	"fmt"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseAOI decodes a GeoJSON string into a polygon. Only Polygon
// geometries are accepted; rings must be closed and large enough to
// enclose area.
func ParseAOI(raw string) (orb.Polygon, error) {
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse AOI: %w", err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("provided GeoJSON is not a polygon")
	}
	if err := validatePolygon(poly); err != nil {
		return nil, fmt.Errorf("the provided polygon is not valid: %w", err)
	}
	return poly, nil
}

func validatePolygon(poly orb.Polygon) error {
	if len(poly) == 0 {
		return fmt.Errorf("no rings")
	}
	for i, ring := range poly {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d has fewer than 4 points", i)
		}
		if !ring.Closed() {
			return fmt.Errorf("ring %d is not closed", i)
		}
	}
	return nil
}

// Intersection computes the boolean intersection of two geometries. Both
// inputs must be Polygon or MultiPolygon. The result is empty when the
// geometries do not overlap.
func Intersection(a, b orb.Geometry) (orb.MultiPolygon, error) {
	ga, err := toGeom(a)
	if err != nil {
		return nil, err
	}
	gb, err := toGeom(b)
	if err != nil {
		return nil, err
	}
	out, err := polygol.Intersection(ga, gb)
	if err != nil {
		return nil, fmt.Errorf("intersect geometries: %w", err)
	}
	return fromGeom(out), nil
}

// Simplify collapses a single-polygon MultiPolygon to a Polygon so the
// serialized geometry type matches what a reader expects.
func Simplify(mp orb.MultiPolygon) orb.Geometry {
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// BBox returns [minLon, minLat, maxLon, maxLat] of a geometry.
func BBox(g orb.Geometry) []float64 {
	b := g.Bound()
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func toGeom(g orb.Geometry) (polygol.Geom, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return polygol.Geom{polygonCoords(t)}, nil
	case orb.MultiPolygon:
		out := make(polygol.Geom, 0, len(t))
		for _, poly := range t {
			out = append(out, polygonCoords(poly))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func polygonCoords(poly orb.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, len(poly))
	for _, ring := range poly {
		points := make([][]float64, 0, len(ring))
		for _, pt := range ring {
			points = append(points, []float64{pt[0], pt[1]})
		}
		rings = append(rings, points)
	}
	return rings
}

func fromGeom(g polygol.Geom) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, polyCoords := range g {
		poly := make(orb.Polygon, 0, len(polyCoords))
		for _, ringCoords := range polyCoords {
			ring := make(orb.Ring, 0, len(ringCoords))
			for _, pt := range ringCoords {
				if len(pt) < 2 {
					continue
				}
				ring = append(ring, orb.Point{pt[0], pt[1]})
			}
			poly = append(poly, ring)
		}
		if len(poly) > 0 {
			mp = append(mp, poly)
		}
	}
	return mp
}
