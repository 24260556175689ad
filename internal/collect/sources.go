package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/housefly/backend/pkg/logger"
)

// ErrRateLimited marks an upstream 429. The sentiment collector treats it
// like a network failure and degrades to its fallback source.
var ErrRateLimited = errors.New("upstream rate limit exceeded")

type CrimeSource interface {
	FetchIncidents(ctx context.Context, limit int) ([]json.RawMessage, error)
}

type PermitSource interface {
	FetchPermits(ctx context.Context, limit int) ([]json.RawMessage, error)
}

type NewsSource interface {
	FetchArticles(ctx context.Context, from, to time.Time) ([]json.RawMessage, error)
}

// OpenDataClient fetches incident and permit records from Socrata-style open
// data endpoints. Responses are JSON arrays; records are returned raw and
// decoded by the collectors.
type OpenDataClient struct {
	crimeURL   string
	permitsURL string
	httpClient *http.Client
}

func NewOpenDataClient(crimeURL, permitsURL string, timeout time.Duration) *OpenDataClient {
	return &OpenDataClient{
		crimeURL:   crimeURL,
		permitsURL: permitsURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenDataClient) FetchIncidents(ctx context.Context, limit int) ([]json.RawMessage, error) {
	return c.fetch(ctx, c.crimeURL, limit, "incident_datetime DESC")
}

func (c *OpenDataClient) FetchPermits(ctx context.Context, limit int) ([]json.RawMessage, error) {
	return c.fetch(ctx, c.permitsURL, limit, "issue_date DESC")
}

func (c *OpenDataClient) fetch(ctx context.Context, baseURL string, limit int, order string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$order", order)

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open data endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	logger.Info("Fetched open data records", zap.String("url", baseURL), zap.Int("count", len(records)))
	return records, nil
}

// NewsClient fetches articles from a GNews-style search endpoint.
type NewsClient struct {
	baseURL    string
	apiKey     string
	query      string
	httpClient *http.Client
}

func NewNewsClient(baseURL, apiKey, query string, timeout time.Duration) *NewsClient {
	return &NewsClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		query:      query,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *NewsClient) FetchArticles(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", c.query)
	params.Set("lang", "en")
	params.Set("country", "us")
	params.Set("max", "100")
	params.Set("apikey", c.apiKey)
	params.Set("from", from.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("to", to.UTC().Format("2006-01-02T15:04:05Z"))

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var wrapper struct {
		Articles []json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	logger.Info("Fetched news articles", zap.Int("count", len(wrapper.Articles)))
	return wrapper.Articles, nil
}

// FallbackNewsSource stands in when the primary news upstream is down or
// rate limited. It currently returns no records; callers treat an empty
// window as neutral sentiment.
type FallbackNewsSource struct{}

func (FallbackNewsSource) FetchArticles(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	logger.Warn("Using fallback news source")
	return nil, nil
}

// parseTimestamp tries the formats the upstreams actually emit. Anything
// unparsable falls back to now so one bad date never sinks a batch.
func parseTimestamp(value string, now time.Time) time.Time {
	if value == "" {
		return now
	}
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, value); err == nil {
			return t
		}
	}
	logger.Debug("Unparsable timestamp, using current time", zap.String("value", value))
	return now
}

// flexFloat accepts both a JSON number and a money-ish string such as
// "$1,250,000".
func flexFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

type coordinates struct {
	Latitude  *float64
	Longitude *float64
}

// decodeCoordinates probes the two shapes the upstreams use, in priority
// order: flat latitude/longitude fields, then a nested location object.
// Records matching neither shape resolve to no coordinates.
func decodeCoordinates(raw json.RawMessage) coordinates {
	var flat struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil {
		lat, lon := flexFloat(flat.Latitude), flexFloat(flat.Longitude)
		if lat != nil && lon != nil {
			return coordinates{Latitude: lat, Longitude: lon}
		}
	}

	var nested struct {
		Location struct {
			Latitude  json.RawMessage `json:"latitude"`
			Longitude json.RawMessage `json:"longitude"`
		} `json:"location"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		lat, lon := flexFloat(nested.Location.Latitude), flexFloat(nested.Location.Longitude)
		if lat != nil && lon != nil {
			return coordinates{Latitude: lat, Longitude: lon}
		}
	}

	return coordinates{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// stringField tolerates fields that arrive as either a JSON string or
// something else entirely (Socrata's location column is sometimes an
// object).
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
