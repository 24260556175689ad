package score

import (
	"math"
	"strings"

	"github.com/housefly/backend/internal/storage/models"
)

// DemographicScores combines per-metric Z-scores (income, median age,
// household size) against the cross-neighborhood distribution and squashes
// the composite through a sigmoid. Neighborhoods without a populated profile
// get the neutral 0.5.
func DemographicScores(profiles []models.DemographicsProfile) map[int64]float64 {
	var incomes, ages, households []float64
	for _, p := range profiles {
		if p.IncomeMedian != nil {
			incomes = append(incomes, *p.IncomeMedian)
		}
		if p.AgeMedian != nil {
			ages = append(ages, *p.AgeMedian)
		}
		if p.HouseholdSizeAvg != nil {
			households = append(households, *p.HouseholdSizeAvg)
		}
	}

	scores := make(map[int64]float64, len(profiles))
	for _, p := range profiles {
		if emptyPayload(p.RawData) || len(incomes) == 0 {
			scores[p.NeighborhoodID] = 0.5
			continue
		}

		incomeZ := zScore(p.IncomeMedian, incomes)
		ageZ := zScore(p.AgeMedian, ages)
		householdZ := zScore(p.HouseholdSizeAvg, households)

		// Income dominates; age near the median and a typical household
		// size are mild positives.
		composite := 0.5*incomeZ +
			0.3*(1.0-math.Abs(ageZ-0.5)) +
			0.2*(1.0-math.Abs(householdZ))

		scores[p.NeighborhoodID] = clamp01(1.0 / (1.0 + math.Exp(-composite)))
	}
	return scores
}

func zScore(value *float64, population []float64) float64 {
	if value == nil || len(population) == 0 {
		return 0.0
	}
	mean := 0.0
	for _, v := range population {
		mean += v
	}
	mean /= float64(len(population))

	variance := 0.0
	for _, v := range population {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(population)))
	if std == 0 {
		std = 1.0
	}
	return (*value - mean) / std
}

func emptyPayload(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "{}" || s == "null"
}
