package handlers

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/cache/redis"
	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/internal/trend"
	"github.com/housefly/backend/pkg/logger"
)

type ScoreHandler struct {
	db    *sqlite.Client
	cache *redis.Client
}

func NewScoreHandler(db *sqlite.Client, cache *redis.Client) *ScoreHandler {
	return &ScoreHandler{db: db, cache: cache}
}

// HandleList ranks every neighborhood by its latest profitability score,
// best first.
func (h *ScoreHandler) HandleList(c *fiber.Ctx) error {
	neighborhoods, err := h.db.ListNeighborhoods()
	if err != nil {
		logger.Error("Failed to list neighborhoods", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list scores",
		})
	}

	latest, err := h.db.LatestScores()
	if err != nil {
		logger.Error("Failed to load latest scores", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list scores",
		})
	}

	results := make([]fiber.Map, 0, len(latest))
	for _, n := range neighborhoods {
		s, ok := latest[n.ID]
		if !ok {
			continue
		}
		results = append(results, fiber.Map{
			"neighborhood_id":     n.ID,
			"neighborhood_name":   n.Name,
			"profitability_score": s.ProfitabilityScore,
			"calculated_at":       s.CalculatedAt,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i]["profitability_score"].(float64) > results[j]["profitability_score"].(float64)
	})

	return c.JSON(fiber.Map{
		"scores": results,
		"count":  len(results),
	})
}

// HandleGet returns the latest score with trend projections. The years
// query parameter selects the projection horizons, e.g. years=1,5.
func (h *ScoreHandler) HandleGet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid neighborhood id",
		})
	}

	years, err := parseYears(c.Query("years"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid years parameter, expected values from 1, 3, 5",
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
			"error": "Failed to get score",
		})
	}

	score, err := h.latestScore(c, n.ID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No score calculated yet for this neighborhood",
		})
	}
	if err != nil {
		logger.Error("Failed to load latest score", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get score",
		})
	}

	history, err := h.db.ListScoreHistory(n.ID)
	if err != nil {
		logger.Error("Failed to load score history", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get score",
		})
	}

	projection := trend.Project(n.ID, n.Name, history, years)

	return c.JSON(fiber.Map{
		"neighborhood_id":     n.ID,
		"neighborhood_name":   n.Name,
		"profitability_score": score.ProfitabilityScore,
		"calculated_at":       score.CalculatedAt,
		"projection_1yr":      projection.Projection1Yr,
		"projection_3yr":      projection.Projection3Yr,
		"projection_5yr":      projection.Projection5Yr,
		"trend":               projection.Trend,
	})
}

// HandleBreakdown returns the latest score with all four subscores.
func (h *ScoreHandler) HandleBreakdown(c *fiber.Ctx) error {
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
			"error": "Failed to get score breakdown",
		})
	}

	score, err := h.latestScore(c, n.ID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No score calculated yet for this neighborhood",
		})
	}
	if err != nil {
		logger.Error("Failed to load latest score", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get score breakdown",
		})
	}

	return c.JSON(fiber.Map{
		"neighborhood_id":      n.ID,
		"neighborhood_name":    n.Name,
		"crime_score":          score.CrimeScore,
		"infrastructure_score": score.InfrastructureScore,
		"demographic_score":    score.DemographicScore,
		"sentiment_score":      score.SentimentScore,
		"profitability_score":  score.ProfitabilityScore,
		"calculated_at":        score.CalculatedAt,
	})
}

// latestScore reads through the cache when one is configured. Cache errors
// fall back to the database.
func (h *ScoreHandler) latestScore(c *fiber.Ctx, neighborhoodID int64) (*models.Score, error) {
	if h.cache != nil {
		var cached models.Score
		hit, err := h.cache.GetLatestScore(c.Context(), neighborhoodID, &cached)
		if err != nil {
			logger.Warn("Score cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	score, err := h.db.LatestScore(neighborhoodID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetLatestScore(c.Context(), neighborhoodID, score); err != nil {
			logger.Warn("Score cache write failed", zap.Error(err))
		}
	}
	return score, nil
}

// parseYears reads the projection horizons. Without the parameter only the
// one year horizon is regressed; the others carry the current score.
func parseYears(raw string) ([]int, error) {
	if raw == "" {
		return []int{1}, nil
	}
	var years []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if y != 1 && y != 3 && y != 5 {
			return nil, errors.New("unsupported projection horizon")
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return []int{1}, nil
	}
	return years, nil
}
