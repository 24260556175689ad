package geo

import (
	"math"

	"go.uber.org/zap"

	"github.com/housefly/backend/pkg/logger"
)

type boundary struct {
	neighborhoodID int64
	geom           *MultiPolygon
}

// Index resolves a coordinate pair to the neighborhood whose boundary
// contains it. Boundaries are assumed non-overlapping; when they do overlap
// the first match in insertion order wins, which with loader ordering means
// ascending neighborhood id. Built once per collection run and read-only
// afterward.
type Index struct {
	boundaries []boundary
}

func NewIndex() *Index {
	return &Index{}
}

// Add decodes rawGeometry and registers it under the neighborhood id.
// Undecodable geometry is logged and treated as non-containing rather than
// failing the run.
func (ix *Index) Add(neighborhoodID int64, rawGeometry []byte) {
	geom, err := DecodeGeometry(rawGeometry)
	if err != nil {
		logger.Warn("skipping invalid neighborhood boundary",
			zap.Int64("neighborhood_id", neighborhoodID),
			zap.Error(err),
		)
		return
	}
	ix.boundaries = append(ix.boundaries, boundary{neighborhoodID: neighborhoodID, geom: geom})
}

func (ix *Index) Len() int {
	return len(ix.boundaries)
}

// Assign returns the id of the first neighborhood containing (lat, lon).
// Non-finite coordinates never match.
func (ix *Index) Assign(lat, lon float64) (int64, bool) {
	if !finite(lat) || !finite(lon) {
		return 0, false
	}
	pt := Point{Lat: lat, Lon: lon}
	for _, b := range ix.boundaries {
		if b.geom.Contains(pt) {
			return b.neighborhoodID, true
		}
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
