package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/pkg/config"
	"github.com/housefly/backend/pkg/logger"
)

// Collector is one data source stage. Collect returns how many new records
// it stored.
type Collector interface {
	Collect(ctx context.Context) (int, error)
}

// Aggregator folds stored records into scores.
type Aggregator interface {
	Aggregate(ctx context.Context, weights config.Weights) error
}

// Refresher runs the full pipeline: the four collectors in a fixed order,
// then aggregation. Stages run sequentially because later signals reuse
// rows the earlier stages just wrote.
type Refresher struct {
	crime        Collector
	permits      Collector
	demographics Collector
	news         Collector
	aggregator   Aggregator
	weights      config.Weights
}

func NewRefresher(crime, permits, demographics, news Collector, aggregator Aggregator, weights config.Weights) *Refresher {
	return &Refresher{
		crime:        crime,
		permits:      permits,
		demographics: demographics,
		news:         news,
		aggregator:   aggregator,
		weights:      weights,
	}
}

// Run executes one refresh. The first stage error aborts the run; already
// committed batches stay, and the dedup checks make the next run pick up
// where this one stopped.
func (r *Refresher) Run(ctx context.Context) error {
	runID := uuid.New().String()
	start := time.Now()
	logger.Info("Refresh started", zap.String("run_id", runID))

	stages := []struct {
		name      string
		collector Collector
	}{
		{"crime", r.crime},
		{"infrastructure", r.permits},
		{"demographics", r.demographics},
		{"sentiment", r.news},
	}

	for _, stage := range stages {
		stageStart := time.Now()
		count, err := stage.collector.Collect(ctx)
		metrics.StageDuration.WithLabelValues(stage.name).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			metrics.RefreshTotal.WithLabelValues("failure").Inc()
			logger.Error("Refresh stage failed",
				zap.String("run_id", runID),
				zap.String("stage", stage.name),
				zap.Error(err),
			)
			return fmt.Errorf("%s stage failed: %w", stage.name, err)
		}
		logger.Info("Refresh stage complete",
			zap.String("run_id", runID),
			zap.String("stage", stage.name),
			zap.Int("records", count),
		)
	}

	stageStart := time.Now()
	err := r.aggregator.Aggregate(ctx, r.weights)
	metrics.StageDuration.WithLabelValues("aggregate").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failure").Inc()
		logger.Error("Aggregation failed", zap.String("run_id", runID), zap.Error(err))
		return fmt.Errorf("aggregation failed: %w", err)
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	logger.Info("Refresh complete",
		zap.String("run_id", runID),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
