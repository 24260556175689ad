package geo

import (
	"math"
	"testing"
)

const squareA = `{"type":"Polygon","coordinates":[[[-78.9,42.8],[-78.8,42.8],[-78.8,42.9],[-78.9,42.9],[-78.9,42.8]]]}`
const squareB = `{"type":"Polygon","coordinates":[[[-78.8,42.8],[-78.7,42.8],[-78.7,42.9],[-78.8,42.9],[-78.8,42.8]]]}`

// Square with a hole covering its center quarter.
const donut = `{"type":"Polygon","coordinates":[
	[[0,0],[4,0],[4,4],[0,4],[0,0]],
	[[1,1],[3,1],[3,3],[1,3],[1,1]]
]}`

const multi = `{"type":"MultiPolygon","coordinates":[
	[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
	[[[10,10],[11,10],[11,11],[10,11],[10,10]]]
]}`

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	ix.Add(1, []byte(squareA))
	ix.Add(2, []byte(squareB))
	return ix
}

func TestAssignInsideBoundary(t *testing.T) {
	ix := newTestIndex(t)

	id, ok := ix.Assign(42.85, -78.85)
	if !ok || id != 1 {
		t.Fatalf("expected neighborhood 1, got %d ok=%v", id, ok)
	}

	id, ok = ix.Assign(42.85, -78.75)
	if !ok || id != 2 {
		t.Fatalf("expected neighborhood 2, got %d ok=%v", id, ok)
	}
}

func TestAssignOutsideAllBoundaries(t *testing.T) {
	ix := newTestIndex(t)
	if id, ok := ix.Assign(0, 0); ok {
		t.Fatalf("point outside all boundaries assigned to %d", id)
	}
}

func TestAssignNonFiniteCoordinates(t *testing.T) {
	ix := newTestIndex(t)
	cases := [][2]float64{
		{math.NaN(), -78.85},
		{42.85, math.NaN()},
		{math.Inf(1), -78.85},
		{42.85, math.Inf(-1)},
	}
	for _, c := range cases {
		if id, ok := ix.Assign(c[0], c[1]); ok {
			t.Fatalf("non-finite coordinates (%v, %v) assigned to %d", c[0], c[1], id)
		}
	}
}

func TestContainsRespectsHoles(t *testing.T) {
	geom, err := DecodeGeometry([]byte(donut))
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}

	if !geom.Contains(Point{Lat: 0.5, Lon: 0.5}) {
		t.Fatal("point between outer ring and hole should be inside")
	}
	if geom.Contains(Point{Lat: 2, Lon: 2}) {
		t.Fatal("point inside the hole should be outside")
	}
}

func TestContainsMultiPolygon(t *testing.T) {
	geom, err := DecodeGeometry([]byte(multi))
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}

	if !geom.Contains(Point{Lat: 0.5, Lon: 0.5}) {
		t.Fatal("point in first part should be inside")
	}
	if !geom.Contains(Point{Lat: 10.5, Lon: 10.5}) {
		t.Fatal("point in second part should be inside")
	}
	if geom.Contains(Point{Lat: 5, Lon: 5}) {
		t.Fatal("point between parts should be outside")
	}
}

func TestDegenerateRingNeverContains(t *testing.T) {
	// Two-vertex ring cannot enclose anything.
	geom, err := DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}`))
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}
	if geom.Contains(Point{Lat: 0.5, Lon: 0.5}) {
		t.Fatal("degenerate ring should not contain any point")
	}
}

func TestAddInvalidGeometryIsNonContaining(t *testing.T) {
	ix := NewIndex()
	ix.Add(1, []byte(`{"type":"Point","coordinates":[0,0]}`))
	ix.Add(2, []byte(`not json`))
	if ix.Len() != 0 {
		t.Fatalf("invalid geometries should be skipped, got %d boundaries", ix.Len())
	}
	if _, ok := ix.Assign(0, 0); ok {
		t.Fatal("index with no valid boundaries should never assign")
	}
}

func TestAssignFirstMatchWins(t *testing.T) {
	// Deliberately overlapping boundaries: insertion order decides.
	ix := NewIndex()
	ix.Add(7, []byte(squareA))
	ix.Add(8, []byte(squareA))

	id, ok := ix.Assign(42.85, -78.85)
	if !ok || id != 7 {
		t.Fatalf("expected first-registered neighborhood 7, got %d", id)
	}
}
