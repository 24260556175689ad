package collect

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/circuitbreaker"
	"github.com/housefly/backend/pkg/logger"
)

// SentimentCollector pulls news articles for later polarity scoring. The
// primary upstream is the least reliable source in the pipeline, so unlike
// the other collectors it degrades instead of failing: a network error or
// rate limit switches to the fallback source and the run continues. The
// circuit breaker stops us hammering a dead upstream across retriggers.
type SentimentCollector struct {
	db        *sqlite.Client
	primary   NewsSource
	fallback  NewsSource
	breaker   *circuitbreaker.CircuitBreaker
	daysBack  int
	batchSize int
}

func NewSentimentCollector(db *sqlite.Client, primary, fallback NewsSource, daysBack, batchSize int) *SentimentCollector {
	return &SentimentCollector{
		db:       db,
		primary:  primary,
		fallback: fallback,
		breaker: circuitbreaker.NewCircuitBreaker("news-upstream", circuitbreaker.Config{
			FailureThreshold: 3,
			Timeout:          10 * time.Minute,
			Logger:           logger.Log,
		}),
		daysBack:  daysBack,
		batchSize: batchSize,
	}
}

type newsWire struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

func (c *SentimentCollector) Collect(ctx context.Context) (int, error) {
	logger.Info("Starting sentiment data collection")

	to := time.Now()
	from := to.AddDate(0, 0, -c.daysBack)

	var records []json.RawMessage
	err := c.breaker.Execute(ctx, func() error {
		var ferr error
		records, ferr = c.primary.FetchArticles(ctx, from, to)
		return ferr
	})
	if err != nil {
		logger.Warn("Primary news source unavailable, degrading to fallback", zap.Error(err))
		records, err = c.fallback.FetchArticles(ctx, from, to)
		if err != nil {
			return 0, err
		}
	}

	added := 0
	skipped := 0
	batch := make([]models.NewsArticle, 0, c.batchSize)
	seen := make(map[string]struct{})
	now := time.Now()

	for _, raw := range records {
		var wire newsWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			logger.Debug("Skipping undecodable article record", zap.Error(err))
			skipped++
			continue
		}

		externalID := wire.URL
		if externalID == "" {
			externalID = truncate(wire.Title, 100)
		}
		if externalID == "" {
			skipped++
			continue
		}

		if _, dup := seen[externalID]; dup {
			skipped++
			continue
		}
		seen[externalID] = struct{}{}

		exists, err := c.db.HasNewsArticle(externalID)
		if err != nil {
			logger.Error("Failed to check article", zap.Error(err))
			skipped++
			continue
		}
		if exists {
			skipped++
			continue
		}

		article := models.NewsArticle{
			ArticleID:   externalID,
			Title:       wire.Title,
			Content:     stripHTML(firstNonEmpty(wire.Description, wire.Content)),
			PublishedAt: parseTimestamp(wire.PublishedAt, now),
			Source:      wire.Source.Name,
			URL:         wire.URL,
			RawData:     raw,
		}

		batch = append(batch, article)
		if len(batch) >= c.batchSize {
			if err := c.db.InsertArticleBatch(batch); err != nil {
				return added, err
			}
			added += len(batch)
			batch = batch[:0]
		}
	}

	if err := c.db.InsertArticleBatch(batch); err != nil {
		return added, err
	}
	added += len(batch)

	metrics.RecordsCollected.WithLabelValues("sentiment").Add(float64(added))
	metrics.RecordsSkipped.WithLabelValues("sentiment").Add(float64(skipped))
	logger.Info("Sentiment data collection complete", zap.Int("added", added), zap.Int("skipped", skipped))
	return added, nil
}

// stripHTML flattens article bodies that arrive with markup so the polarity
// analyzer only ever sees text.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
