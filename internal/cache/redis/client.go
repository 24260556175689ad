package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func scoreKey(neighborhoodID int64) string {
	return fmt.Sprintf("score:latest:%d", neighborhoodID)
}

// SetLatestScore caches a serialized latest-score response for one
// neighborhood. Failures are the caller's problem to log; the cache is never
// load-bearing.
func (c *Client) SetLatestScore(ctx context.Context, neighborhoodID int64, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	err = c.client.Set(ctx, scoreKey(neighborhoodID), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set score cache: %w", err)
	}

	logger.Debug("Latest score cached", zap.Int64("neighborhood_id", neighborhoodID))
	return nil
}

// GetLatestScore unmarshals a cached latest-score response into response.
// Returns false on a miss.
func (c *Client) GetLatestScore(ctx context.Context, neighborhoodID int64, response interface{}) (bool, error) {
	data, err := c.client.Get(ctx, scoreKey(neighborhoodID)).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("score").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get score cache: %w", err)
	}

	err = json.Unmarshal(data, response)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal score: %w", err)
	}

	metrics.CacheHits.WithLabelValues("score").Inc()
	logger.Debug("Score cache hit", zap.Int64("neighborhood_id", neighborhoodID))
	return true, nil
}

// InvalidateScores drops every cached score after a refresh writes new rows.
func (c *Client) InvalidateScores(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "score:latest:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Score cache invalidated")
	return nil
}
