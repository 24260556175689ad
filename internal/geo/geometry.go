package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

type Point struct {
	Lat float64
	Lon float64
}

// Polygon is a GeoJSON-style ring set: the first ring is the outer boundary,
// any following rings are holes.
type Polygon struct {
	Rings [][]Point
	BBox  [4]float64 // minLon, minLat, maxLon, maxLat
}

// MultiPolygon is the decoded form of a GeoJSON Polygon or MultiPolygon
// geometry.
type MultiPolygon struct {
	Polys []Polygon
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// DecodeGeometry parses a GeoJSON geometry object. Only Polygon and
// MultiPolygon are supported; anything else is an error.
func DecodeGeometry(raw []byte) (*MultiPolygon, error) {
	var g geoJSONGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}

	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to parse polygon coordinates: %w", err)
		}
		poly, err := buildPolygon(coords)
		if err != nil {
			return nil, err
		}
		return &MultiPolygon{Polys: []Polygon{poly}}, nil

	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to parse multipolygon coordinates: %w", err)
		}
		mp := &MultiPolygon{Polys: make([]Polygon, 0, len(coords))}
		for _, pc := range coords {
			poly, err := buildPolygon(pc)
			if err != nil {
				return nil, err
			}
			mp.Polys = append(mp.Polys, poly)
		}
		return mp, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func buildPolygon(coords [][][]float64) (Polygon, error) {
	poly := Polygon{Rings: make([][]Point, 0, len(coords))}
	bbox := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}

	for _, ring := range coords {
		pts := make([]Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return Polygon{}, fmt.Errorf("position needs 2 coordinates, got %d", len(pos))
			}
			// GeoJSON order is (lon, lat)
			pt := Point{Lat: pos[1], Lon: pos[0]}
			pts = append(pts, pt)
			if pt.Lon < bbox[0] {
				bbox[0] = pt.Lon
			}
			if pt.Lat < bbox[1] {
				bbox[1] = pt.Lat
			}
			if pt.Lon > bbox[2] {
				bbox[2] = pt.Lon
			}
			if pt.Lat > bbox[3] {
				bbox[3] = pt.Lat
			}
		}
		poly.Rings = append(poly.Rings, pts)
	}

	poly.BBox = bbox
	return poly, nil
}

// Contains reports whether the point falls inside the multipolygon. Outer
// ring hit with no hole hit counts as inside. Rings with fewer than three
// vertices never contain anything.
func (mp *MultiPolygon) Contains(pt Point) bool {
	for _, poly := range mp.Polys {
		if pointInPoly(pt, poly) {
			return true
		}
	}
	return false
}

func pointInPoly(pt Point, poly Polygon) bool {
	if len(poly.Rings) == 0 {
		return false
	}
	if !inBBox(pt, poly.BBox) {
		return false
	}
	if !pointInRing(pt, poly.Rings[0]) {
		return false
	}
	for i := 1; i < len(poly.Rings); i++ {
		if pointInRing(pt, poly.Rings[i]) {
			return false
		}
	}
	return true
}

// Ray casting. The epsilon keeps vertical edges from dividing by zero.
func pointInRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x := pt.Lon
	y := pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi := ring[i].Lon
		yi := ring[i].Lat
		xj := ring[j].Lon
		yj := ring[j].Lat
		intersect := ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi)
		if intersect {
			inside = !inside
		}
	}
	return inside
}

func inBBox(pt Point, b [4]float64) bool {
	return pt.Lon >= b[0] && pt.Lon <= b[2] && pt.Lat >= b[1] && pt.Lat <= b[3]
}
