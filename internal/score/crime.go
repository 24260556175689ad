package score

import (
	"math"
	"time"

	"github.com/housefly/backend/internal/storage/models"
)

// timeDecayFactor makes records older than roughly two years nearly
// weightless.
const timeDecayFactor = 0.1

var severityWeights = map[string]float64{
	"violent":  3.0,
	"property": 1.5,
	"other":    1.0,
}

// CrimeScores computes the [0,1] crime subscore per neighborhood: 1 minus
// the neighborhood's time-decayed, severity-weighted incident magnitude
// normalized by the maximum magnitude across all neighborhoods. No incidents
// means a perfect 1.0. The normalization is relative by design: another
// neighborhood's incidents move this neighborhood's score.
func CrimeScores(neighborhoods []models.Neighborhood, incidents []models.CrimeIncident, now time.Time) map[int64]float64 {
	magnitudes := make(map[int64]float64, len(neighborhoods))
	for _, in := range incidents {
		if in.NeighborhoodID == nil {
			continue
		}
		weight := severityWeights[in.Severity]
		if weight == 0 {
			weight = 1.0
		}
		magnitudes[*in.NeighborhoodID] += timeDecay(now, in.Date) * weight
	}

	maxMagnitude := 0.0
	for _, n := range neighborhoods {
		if m := magnitudes[n.ID]; m > maxMagnitude {
			maxMagnitude = m
		}
	}

	scores := make(map[int64]float64, len(neighborhoods))
	for _, n := range neighborhoods {
		if maxMagnitude == 0 {
			scores[n.ID] = 1.0
			continue
		}
		scores[n.ID] = clamp01(1.0 - magnitudes[n.ID]/maxMagnitude)
	}
	return scores
}

func timeDecay(now, recordDate time.Time) float64 {
	daysAgo := now.Sub(recordDate).Hours() / 24.0
	return math.Exp(-timeDecayFactor * daysAgo / 365.0)
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
