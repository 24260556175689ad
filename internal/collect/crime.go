package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/housefly/backend/internal/geo"
	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/logger"
)

var violentKeywords = []string{"assault", "homicide", "murder", "robbery", "rape", "weapon", "shooting", "stabbing"}
var propertyKeywords = []string{"burglary", "theft", "larceny", "vandalism", "arson", "auto"}

type CrimeCollector struct {
	db        *sqlite.Client
	source    CrimeSource
	limit     int
	batchSize int
}

func NewCrimeCollector(db *sqlite.Client, source CrimeSource, limit, batchSize int) *CrimeCollector {
	return &CrimeCollector{db: db, source: source, limit: limit, batchSize: batchSize}
}

type crimeWire struct {
	IncidentNumber   string          `json:"incident_number"`
	ID               string          `json:"id"`
	IncidentDatetime string          `json:"incident_datetime"`
	Date             string          `json:"date"`
	Location         json.RawMessage `json:"location"`
	Address          string          `json:"address"`
	OffenseType      string          `json:"offense_type"`
	Offense          string          `json:"offense"`
}

// Collect fetches incidents, deduplicates them by external id, classifies
// severity, assigns each record a neighborhood, and persists new rows in
// micro-batches. Per-record failures are skipped; a fetch failure fails the
// whole call.
func (c *CrimeCollector) Collect(ctx context.Context) (int, error) {
	logger.Info("Starting crime data collection")

	index, err := c.loadBoundaryIndex()
	if err != nil {
		return 0, err
	}

	records, err := c.source.FetchIncidents(ctx, c.limit)
	if err != nil {
		return 0, fmt.Errorf("crime fetch failed: %w", err)
	}

	added := 0
	skipped := 0
	batch := make([]models.CrimeIncident, 0, c.batchSize)
	seen := make(map[string]struct{})
	now := time.Now()

	for _, raw := range records {
		var wire crimeWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			logger.Debug("Skipping undecodable incident record", zap.Error(err))
			skipped++
			continue
		}

		externalID := firstNonEmpty(wire.IncidentNumber, wire.ID)
		if externalID == "" {
			skipped++
			continue
		}

		// Upstream payloads repeat ids; the database check alone misses
		// rows still pending in the current batch.
		if _, dup := seen[externalID]; dup {
			skipped++
			continue
		}
		seen[externalID] = struct{}{}

		exists, err := c.db.HasCrimeIncident(externalID)
		if err != nil {
			logger.Error("Failed to check incident", zap.String("incident_id", externalID), zap.Error(err))
			skipped++
			continue
		}
		if exists {
			skipped++
			continue
		}

		offense := firstNonEmpty(wire.OffenseType, wire.Offense)
		coords := decodeCoordinates(raw)

		incident := models.CrimeIncident{
			IncidentID:  externalID,
			Date:        parseTimestamp(firstNonEmpty(wire.IncidentDatetime, wire.Date), now),
			Location:    firstNonEmpty(stringField(wire.Location), wire.Address),
			OffenseType: offense,
			Severity:    classifySeverity(offense),
			Latitude:    coords.Latitude,
			Longitude:   coords.Longitude,
			RawData:     raw,
		}

		if coords.Latitude != nil && coords.Longitude != nil {
			if id, ok := index.Assign(*coords.Latitude, *coords.Longitude); ok {
				incident.NeighborhoodID = &id
			}
		}

		batch = append(batch, incident)
		if len(batch) >= c.batchSize {
			if err := c.db.InsertCrimeBatch(batch); err != nil {
				return added, err
			}
			added += len(batch)
			batch = batch[:0]
			logger.Info("Processed crime incidents", zap.Int("added", added))
		}
	}

	if err := c.db.InsertCrimeBatch(batch); err != nil {
		return added, err
	}
	added += len(batch)

	metrics.RecordsCollected.WithLabelValues("crime").Add(float64(added))
	metrics.RecordsSkipped.WithLabelValues("crime").Add(float64(skipped))
	logger.Info("Crime data collection complete", zap.Int("added", added), zap.Int("skipped", skipped))
	return added, nil
}

func (c *CrimeCollector) loadBoundaryIndex() (*geo.Index, error) {
	neighborhoods, err := c.db.ListNeighborhoods()
	if err != nil {
		return nil, fmt.Errorf("failed to load neighborhoods: %w", err)
	}
	index := geo.NewIndex()
	for _, n := range neighborhoods {
		index.Add(n.ID, n.Boundary)
	}
	return index, nil
}

// classifySeverity buckets an offense description by keyword, case
// insensitive. Violent keywords win over property keywords; anything else is
// "other".
func classifySeverity(offenseType string) string {
	lower := strings.ToLower(offenseType)
	for _, kw := range violentKeywords {
		if strings.Contains(lower, kw) {
			return "violent"
		}
	}
	for _, kw := range propertyKeywords {
		if strings.Contains(lower, kw) {
			return "property"
		}
	}
	return "other"
}
