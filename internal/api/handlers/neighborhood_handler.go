package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/logger"
)

type NeighborhoodHandler struct {
	db *sqlite.Client
}

func NewNeighborhoodHandler(db *sqlite.Client) *NeighborhoodHandler {
	return &NeighborhoodHandler{db: db}
}

func (h *NeighborhoodHandler) HandleList(c *fiber.Ctx) error {
	neighborhoods, err := h.db.ListNeighborhoods()
	if err != nil {
		logger.Error("Failed to list neighborhoods", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list neighborhoods",
		})
	}

	latest, err := h.db.LatestScores()
	if err != nil {
		logger.Error("Failed to load latest scores", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list neighborhoods",
		})
	}

	results := make([]fiber.Map, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		entry := fiber.Map{
			"id":   n.ID,
			"name": n.Name,
		}
		if s, ok := latest[n.ID]; ok {
			entry["profitability_score"] = s.ProfitabilityScore
			entry["calculated_at"] = s.CalculatedAt
		}
		results = append(results, entry)
	}

	return c.JSON(fiber.Map{
		"neighborhoods": results,
		"count":         len(results),
	})
}

func (h *NeighborhoodHandler) HandleGet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid neighborhood id",
		})
	}

	n, err := h.db.GetNeighborhood(int64(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Neighborhood not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get neighborhood", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get neighborhood",
		})
	}

	// Boundary is stored as GeoJSON text; return it as structured JSON
	// rather than a double-encoded string.
	var boundary json.RawMessage
	if len(n.Boundary) > 0 {
		boundary = json.RawMessage(n.Boundary)
	}

	return c.JSON(fiber.Map{
		"id":       n.ID,
		"name":     n.Name,
		"boundary": boundary,
	})
}

func (h *NeighborhoodHandler) HandleScoreHistory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid neighborhood id",
		})
	}

	n, err := h.db.GetNeighborhood(int64(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Neighborhood not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get neighborhood", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get neighborhood",
		})
	}

	history, err := h.db.ListScoreHistory(n.ID)
	if err != nil {
		logger.Error("Failed to list score history", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list score history",
		})
	}

	results := make([]fiber.Map, 0, len(history))
	for _, s := range history {
		results = append(results, fiber.Map{
			"crime_score":          s.CrimeScore,
			"infrastructure_score": s.InfrastructureScore,
			"demographic_score":    s.DemographicScore,
			"sentiment_score":      s.SentimentScore,
			"profitability_score":  s.ProfitabilityScore,
			"calculated_at":        s.CalculatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"neighborhood_id":   n.ID,
		"neighborhood_name": n.Name,
		"history":           results,
		"count":             len(results),
	})
}
