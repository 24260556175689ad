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

var commercialKeywords = []string{"commercial", "business", "retail", "office", "industrial"}
var residentialKeywords = []string{"residential", "dwelling", "house", "apartment", "multi-family"}

// commercialValueThreshold forces high-value permits into the commercial
// bucket even without a keyword match.
const commercialValueThreshold = 100000.0

type InfrastructureCollector struct {
	db        *sqlite.Client
	source    PermitSource
	limit     int
	batchSize int
}

func NewInfrastructureCollector(db *sqlite.Client, source PermitSource, limit, batchSize int) *InfrastructureCollector {
	return &InfrastructureCollector{db: db, source: source, limit: limit, batchSize: batchSize}
}

type permitWire struct {
	PermitNumber  string          `json:"permit_number"`
	ID            string          `json:"id"`
	IssueDate     string          `json:"issue_date"`
	Date          string          `json:"date"`
	PermitType    string          `json:"permit_type"`
	Type          string          `json:"type"`
	Location      json.RawMessage `json:"location"`
	Address       string          `json:"address"`
	Status        string          `json:"status"`
	PermitStatus  string          `json:"permit_status"`
	EstimatedCost json.RawMessage `json:"estimated_cost"`
	Value         json.RawMessage `json:"value"`
	Cost          json.RawMessage `json:"cost"`
}

func (c *InfrastructureCollector) Collect(ctx context.Context) (int, error) {
	logger.Info("Starting infrastructure data collection")

	neighborhoods, err := c.db.ListNeighborhoods()
	if err != nil {
		return 0, fmt.Errorf("failed to load neighborhoods: %w", err)
	}
	index := geo.NewIndex()
	for _, n := range neighborhoods {
		index.Add(n.ID, n.Boundary)
	}

	records, err := c.source.FetchPermits(ctx, c.limit)
	if err != nil {
		return 0, fmt.Errorf("permit fetch failed: %w", err)
	}

	added := 0
	skipped := 0
	batch := make([]models.BuildingPermit, 0, c.batchSize)
	seen := make(map[string]struct{})
	now := time.Now()

	for _, raw := range records {
		var wire permitWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			logger.Debug("Skipping undecodable permit record", zap.Error(err))
			skipped++
			continue
		}

		externalID := firstNonEmpty(wire.PermitNumber, wire.ID)
		if externalID == "" {
			skipped++
			continue
		}

		if _, dup := seen[externalID]; dup {
			skipped++
			continue
		}
		seen[externalID] = struct{}{}

		exists, err := c.db.HasBuildingPermit(externalID)
		if err != nil {
			logger.Error("Failed to check permit", zap.String("permit_id", externalID), zap.Error(err))
			skipped++
			continue
		}
		if exists {
			skipped++
			continue
		}

		permitType := firstNonEmpty(wire.PermitType, wire.Type)
		value := firstFloat(wire.EstimatedCost, wire.Value, wire.Cost)
		coords := decodeCoordinates(raw)

		permit := models.BuildingPermit{
			PermitID:    externalID,
			PermitType:  permitType,
			Location:    firstNonEmpty(stringField(wire.Location), wire.Address),
			Date:        parseTimestamp(firstNonEmpty(wire.IssueDate, wire.Date), now),
			Status:      firstNonEmpty(wire.Status, wire.PermitStatus),
			Value:       value,
			ProjectType: classifyProjectType(permitType, value),
			Latitude:    coords.Latitude,
			Longitude:   coords.Longitude,
			RawData:     raw,
		}

		if coords.Latitude != nil && coords.Longitude != nil {
			if id, ok := index.Assign(*coords.Latitude, *coords.Longitude); ok {
				permit.NeighborhoodID = &id
			}
		}

		batch = append(batch, permit)
		if len(batch) >= c.batchSize {
			if err := c.db.InsertPermitBatch(batch); err != nil {
				return added, err
			}
			added += len(batch)
			batch = batch[:0]
			logger.Info("Processed building permits", zap.Int("added", added))
		}
	}

	if err := c.db.InsertPermitBatch(batch); err != nil {
		return added, err
	}
	added += len(batch)

	metrics.RecordsCollected.WithLabelValues("infrastructure").Add(float64(added))
	metrics.RecordsSkipped.WithLabelValues("infrastructure").Add(float64(skipped))
	logger.Info("Infrastructure data collection complete", zap.Int("added", added), zap.Int("skipped", skipped))
	return added, nil
}

func firstFloat(raws ...json.RawMessage) *float64 {
	for _, raw := range raws {
		if v := flexFloat(raw); v != nil {
			return v
		}
	}
	return nil
}

// classifyProjectType buckets a permit by keyword. A missing keyword match
// with an estimated cost above the threshold still counts as commercial.
func classifyProjectType(permitType string, value *float64) string {
	lower := strings.ToLower(permitType)
	for _, kw := range commercialKeywords {
		if strings.Contains(lower, kw) {
			return "commercial"
		}
	}
	for _, kw := range residentialKeywords {
		if strings.Contains(lower, kw) {
			return "residential"
		}
	}
	if value != nil && *value > commercialValueThreshold {
		return "commercial"
	}
	return "minor"
}
