package trend

import (
	"math"

	"github.com/housefly/backend/internal/storage/models"
)

// Fewer history points than this and a regression line is noise.
const minHistoryPoints = 3

// trendThreshold is the score delta between the last two runs below which
// the direction reads as stable.
const trendThreshold = 0.5

var horizonDays = map[int]float64{
	1: 365,
	3: 1095,
	5: 1825,
}

// Projection is the forward-looking view for one neighborhood. Horizons not
// requested by the caller carry the current score.
type Projection struct {
	NeighborhoodID   int64   `json:"neighborhood_id"`
	NeighborhoodName string  `json:"neighborhood_name"`
	CurrentScore     float64 `json:"current_score"`
	Projection1Yr    float64 `json:"projection_1yr"`
	Projection3Yr    float64 `json:"projection_3yr"`
	Projection5Yr    float64 `json:"projection_5yr"`
	Trend            string  `json:"trend"` // up, down, stable
}

// Project fits an ordinary least squares line over the score history
// (days since the first run against profitability) and evaluates it at the
// requested horizon day offsets from the first run, clamped to the score
// range. History must be ordered
// oldest first. With fewer than three points every horizon is the current
// score and the trend is stable.
func Project(neighborhoodID int64, name string, history []models.Score, years []int) Projection {
	p := Projection{
		NeighborhoodID:   neighborhoodID,
		NeighborhoodName: name,
	}

	current := 0.0
	if len(history) > 0 {
		current = history[len(history)-1].ProfitabilityScore
	}
	p.CurrentScore = current
	p.Projection1Yr = current
	p.Projection3Yr = current
	p.Projection5Yr = current
	p.Trend = "stable"

	if len(history) < minHistoryPoints {
		return p
	}

	first := history[0].CalculatedAt
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, h := range history {
		xs[i] = h.CalculatedAt.Sub(first).Hours() / 24.0
		ys[i] = h.ProfitabilityScore
	}
	slope, intercept := fitLine(xs, ys)

	for _, y := range years {
		days, ok := horizonDays[y]
		if !ok {
			continue
		}
		predicted := clampScore(intercept + slope*days)
		switch y {
		case 1:
			p.Projection1Yr = predicted
		case 3:
			p.Projection3Yr = predicted
		case 5:
			p.Projection5Yr = predicted
		}
	}

	delta := ys[len(ys)-1] - ys[len(ys)-2]
	switch {
	case delta > trendThreshold:
		p.Trend = "up"
	case delta < -trendThreshold:
		p.Trend = "down"
	}

	return p
}

// fitLine returns the least squares slope and intercept. A degenerate x
// spread (all runs at the same instant) yields a flat line at the mean.
func fitLine(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den float64
	for i := range xs {
		num += (xs[i] - meanX) * (ys[i] - meanY)
		den += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	return slope, meanY - slope*meanX
}

func clampScore(v float64) float64 {
	return math.Max(0.0, math.Min(100.0, v))
}
