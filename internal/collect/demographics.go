package collect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/logger"
)

// DemographicsCollector has no live upstream yet. It upserts one empty
// profile per neighborhood so downstream processors always find a row;
// callers must not assume the profiles carry data.
type DemographicsCollector struct {
	db *sqlite.Client
}

func NewDemographicsCollector(db *sqlite.Client) *DemographicsCollector {
	return &DemographicsCollector{db: db}
}

func (c *DemographicsCollector) Collect(ctx context.Context) (int, error) {
	logger.Info("Starting demographics data collection")

	neighborhoods, err := c.db.ListNeighborhoods()
	if err != nil {
		return 0, fmt.Errorf("failed to load neighborhoods: %w", err)
	}

	updated := 0
	for _, n := range neighborhoods {
		if err := c.db.EnsureDemographicsProfile(n.ID); err != nil {
			return updated, err
		}
		updated++
	}

	logger.Info("Demographics data collection complete", zap.Int("profiles", updated))
	logger.Warn("Demographics upstream is not integrated; profiles are placeholders")
	return updated, nil
}
