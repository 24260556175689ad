package score

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/housefly/backend/internal/cache/redis"
	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/config"
	"github.com/housefly/backend/pkg/logger"
)

// neutralSubscore fills in for any processor that produced no score for a
// neighborhood.
const neutralSubscore = 0.5

// Aggregator runs the four processors and folds their subscores into the
// composite profitability score, writing one current row and one history row
// per neighborhood in a single transaction.
type Aggregator struct {
	db        *sqlite.Client
	cache     *redis.Client
	sentiment *SentimentProcessor
}

func NewAggregator(db *sqlite.Client, cache *redis.Client, sentiment *SentimentProcessor) *Aggregator {
	return &Aggregator{db: db, cache: cache, sentiment: sentiment}
}

// Aggregate validates weights before touching the database; an invalid
// weights configuration fails the run with zero rows written.
func (a *Aggregator) Aggregate(ctx context.Context, weights config.Weights) error {
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights config: %w", err)
	}

	neighborhoods, err := a.db.ListNeighborhoods()
	if err != nil {
		return fmt.Errorf("failed to load neighborhoods: %w", err)
	}
	if len(neighborhoods) == 0 {
		logger.Warn("No neighborhoods loaded, skipping aggregation")
		return nil
	}

	now := time.Now()

	incidents, err := a.db.ListCrimeIncidents()
	if err != nil {
		return fmt.Errorf("failed to load crime incidents: %w", err)
	}
	crimeScores := CrimeScores(neighborhoods, incidents, now)

	permits, err := a.db.ListBuildingPermits()
	if err != nil {
		return fmt.Errorf("failed to load building permits: %w", err)
	}
	infraScores := InfrastructureScores(neighborhoods, permits, now)

	profiles, err := a.db.ListDemographicsProfiles()
	if err != nil {
		return fmt.Errorf("failed to load demographics profiles: %w", err)
	}
	demoScores := DemographicScores(profiles)

	sentimentScores, err := a.sentiment.Scores(neighborhoods, now)
	if err != nil {
		return fmt.Errorf("failed to compute sentiment scores: %w", err)
	}

	scores := Compose(neighborhoods, crimeScores, infraScores, demoScores, sentimentScores, weights, now)

	if err := a.db.InsertScoreRun(scores); err != nil {
		return fmt.Errorf("failed to persist score run: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.InvalidateScores(ctx); err != nil {
			logger.Warn("Failed to invalidate score cache", zap.Error(err))
		}
	}

	metrics.NeighborhoodsScored.Set(float64(len(scores)))
	byID := make(map[int64]string, len(neighborhoods))
	for _, n := range neighborhoods {
		byID[n.ID] = n.Name
	}
	for _, s := range scores {
		metrics.ProfitabilityScore.WithLabelValues(byID[s.NeighborhoodID]).Set(s.ProfitabilityScore)
	}

	logger.Info("Aggregation complete", zap.Int("neighborhoods", len(scores)))
	return nil
}

// Compose applies the weighted formula per neighborhood, defaulting any
// missing subscore to neutral, and scales the composite to 0-100.
func Compose(
	neighborhoods []models.Neighborhood,
	crime, infrastructure, demographic, sentiment map[int64]float64,
	weights config.Weights,
	calculatedAt time.Time,
) []models.Score {
	scores := make([]models.Score, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		c := subscoreOrNeutral(crime, n.ID)
		i := subscoreOrNeutral(infrastructure, n.ID)
		d := subscoreOrNeutral(demographic, n.ID)
		s := subscoreOrNeutral(sentiment, n.ID)

		profitability := 100.0 * (weights.Crime*c +
			weights.Infrastructure*i +
			weights.Demographic*d +
			weights.Sentiment*s)

		logger.Debug("Composed neighborhood score",
			zap.String("neighborhood", n.Name),
			zap.Float64("profitability", profitability),
			zap.Float64("crime", c),
			zap.Float64("infrastructure", i),
			zap.Float64("demographic", d),
			zap.Float64("sentiment", s),
		)

		scores = append(scores, models.Score{
			NeighborhoodID:      n.ID,
			CrimeScore:          c,
			InfrastructureScore: i,
			DemographicScore:    d,
			SentimentScore:      s,
			ProfitabilityScore:  profitability,
			CalculatedAt:        calculatedAt,
		})
	}
	return scores
}

func subscoreOrNeutral(scores map[int64]float64, id int64) float64 {
	if v, ok := scores[id]; ok {
		return v
	}
	return neutralSubscore
}
