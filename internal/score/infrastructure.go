package score

import (
	"time"

	"github.com/housefly/backend/internal/storage/models"
)

var projectTypeWeights = map[string]float64{
	"commercial":  3.0,
	"residential": 2.0,
	"minor":       1.0,
}

const defaultPermitValue = 50000.0

// noActivityScore penalizes neighborhoods with zero permits below the
// neutral 0.5: absence of development is a signal, not missing data.
const noActivityScore = 0.3

// InfrastructureScores computes the [0,1] infrastructure subscore per
// neighborhood: the time-decayed, type- and value-weighted permit magnitude
// normalized by the maximum across all neighborhoods. More activity is
// better, the inverse of the crime signal.
func InfrastructureScores(neighborhoods []models.Neighborhood, permits []models.BuildingPermit, now time.Time) map[int64]float64 {
	magnitudes := make(map[int64]float64, len(neighborhoods))
	counts := make(map[int64]int, len(neighborhoods))

	for _, p := range permits {
		if p.NeighborhoodID == nil {
			continue
		}

		decay := timeDecay(now, permitDate(p, now))
		typeWeight := projectTypeWeights[p.ProjectType]
		if typeWeight == 0 {
			typeWeight = 1.0
		}
		value := defaultPermitValue
		if p.Value != nil {
			value = *p.Value
		}

		magnitudes[*p.NeighborhoodID] += decay * typeWeight * (1.0 + value/100000.0)
		counts[*p.NeighborhoodID]++
	}

	maxMagnitude := 0.0
	for _, n := range neighborhoods {
		if m := magnitudes[n.ID]; m > maxMagnitude {
			maxMagnitude = m
		}
	}

	scores := make(map[int64]float64, len(neighborhoods))
	for _, n := range neighborhoods {
		switch {
		case counts[n.ID] == 0:
			scores[n.ID] = noActivityScore
		case maxMagnitude == 0:
			scores[n.ID] = 0.5
		default:
			scores[n.ID] = clamp01(magnitudes[n.ID] / maxMagnitude)
		}
	}
	return scores
}

// A permit without a usable issue date decays as if it were a year old.
func permitDate(p models.BuildingPermit, now time.Time) time.Time {
	if p.Date.IsZero() || p.Date.Unix() == 0 {
		return now.AddDate(-1, 0, 0)
	}
	return p.Date
}
