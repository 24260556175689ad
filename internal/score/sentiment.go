package score

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/housefly/backend/internal/sentiment"
	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/logger"
)

// sentimentWindowDays bounds how far back articles count toward the score.
const sentimentWindowDays = 180

// SentimentProcessor scores neighborhoods from recent news coverage. The
// analyzer is injected, never global; its compound per article is computed
// once and backfilled onto the article row, so reruns only pay for new
// articles.
type SentimentProcessor struct {
	db       *sqlite.Client
	analyzer *sentiment.Analyzer
}

func NewSentimentProcessor(db *sqlite.Client, analyzer *sentiment.Analyzer) *SentimentProcessor {
	return &SentimentProcessor{db: db, analyzer: analyzer}
}

func (p *SentimentProcessor) Scores(neighborhoods []models.Neighborhood, now time.Time) (map[int64]float64, error) {
	articles, err := p.db.ListArticlesSince(now.AddDate(0, 0, -sentimentWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	compounds := make(map[int64]float64, len(articles))
	scores := make(map[int64]float64, len(neighborhoods))

	for _, n := range neighborhoods {
		var matched []float64
		for i := range articles {
			a := &articles[i]
			if !MatchesNeighborhood(n.Name, a.Title, a.Content) {
				continue
			}
			matched = append(matched, p.compound(a, compounds))
		}
		scores[n.ID] = SentimentFromCompounds(matched)
	}

	return scores, nil
}

func (p *SentimentProcessor) compound(a *models.NewsArticle, cache map[int64]float64) float64 {
	if v, ok := cache[a.ID]; ok {
		return v
	}
	if a.SentimentScore != nil {
		cache[a.ID] = *a.SentimentScore
		return *a.SentimentScore
	}

	v := p.analyzer.Polarity(a.Title + " " + a.Content)
	cache[a.ID] = v
	if err := p.db.SetArticleSentiment(a.ID, v); err != nil {
		// The score is still usable this run; only the cache write failed.
		logger.Warn("Failed to backfill article sentiment", zap.Int64("article_id", a.ID), zap.Error(err))
	}
	return v
}

// MatchesNeighborhood reports whether an article mentions the neighborhood:
// a case-insensitive substring check on the name and two naive variants
// (spaces removed, spaces hyphenated) against title plus content.
func MatchesNeighborhood(name, title, content string) bool {
	text := strings.ToLower(title + " " + content)
	lower := strings.ToLower(name)

	variants := []string{
		lower,
		strings.ReplaceAll(lower, " ", "-"),
		strings.ReplaceAll(lower, " ", ""),
	}
	for _, v := range variants {
		if v != "" && strings.Contains(text, v) {
			return true
		}
	}
	return false
}

// SentimentFromCompounds averages article compounds and rescales [-1,1] to
// [0,1]. No matched articles is neutral.
func SentimentFromCompounds(compounds []float64) float64 {
	if len(compounds) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, c := range compounds {
		sum += c
	}
	avg := sum / float64(len(compounds))
	return clamp01((avg + 1.0) / 2.0)
}
