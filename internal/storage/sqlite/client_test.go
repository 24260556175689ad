package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/housefly/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return c
}

func seedNeighborhood(t *testing.T, c *Client, name string) int64 {
	t.Helper()
	id, err := c.InsertNeighborhood(name, []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`))
	if err != nil {
		t.Fatalf("failed to insert neighborhood %s: %v", name, err)
	}
	return id
}

func TestNeighborhoodRoundTrip(t *testing.T) {
	c := newTestClient(t)
	id := seedNeighborhood(t, c, "Elmwood Village")

	n, err := c.GetNeighborhood(id)
	if err != nil {
		t.Fatalf("failed to get neighborhood: %v", err)
	}
	if n.Name != "Elmwood Village" {
		t.Errorf("name = %q, want Elmwood Village", n.Name)
	}
	if len(n.Boundary) == 0 {
		t.Error("boundary should round-trip")
	}

	exists, err := c.NeighborhoodExists("Elmwood Village")
	if err != nil || !exists {
		t.Errorf("NeighborhoodExists = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = c.NeighborhoodExists("Nowhere")
	if err != nil || exists {
		t.Errorf("NeighborhoodExists = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestGetNeighborhoodNotFound(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.GetNeighborhood(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCrimeBatchAndDedup(t *testing.T) {
	c := newTestClient(t)
	nid := seedNeighborhood(t, c, "Allentown")

	lat, lon := 42.9, -78.87
	batch := []models.CrimeIncident{
		{IncidentID: "A-1", Date: time.Now(), OffenseType: "ASSAULT", Severity: "violent",
			Latitude: &lat, Longitude: &lon, NeighborhoodID: &nid, RawData: []byte(`{}`)},
		{IncidentID: "A-2", Date: time.Now(), Severity: "other", RawData: []byte(`{}`)},
	}
	if err := c.InsertCrimeBatch(batch); err != nil {
		t.Fatalf("failed to insert batch: %v", err)
	}

	has, err := c.HasCrimeIncident("A-1")
	if err != nil || !has {
		t.Errorf("HasCrimeIncident(A-1) = (%v, %v), want (true, nil)", has, err)
	}
	has, _ = c.HasCrimeIncident("A-3")
	if has {
		t.Error("HasCrimeIncident(A-3) should be false")
	}

	// A duplicate external id violates the unique constraint and rolls the
	// whole batch back.
	err = c.InsertCrimeBatch([]models.CrimeIncident{
		{IncidentID: "A-9", Date: time.Now(), RawData: []byte(`{}`)},
		{IncidentID: "A-1", Date: time.Now(), RawData: []byte(`{}`)},
	})
	if err == nil {
		t.Fatal("duplicate insert should fail")
	}
	incidents, err := c.ListCrimeIncidents()
	if err != nil {
		t.Fatalf("failed to list incidents: %v", err)
	}
	if len(incidents) != 2 {
		t.Errorf("got %d incidents, want 2 (failed batch rolled back)", len(incidents))
	}
}

func TestEnsureDemographicsProfileIdempotent(t *testing.T) {
	c := newTestClient(t)
	nid := seedNeighborhood(t, c, "Allentown")

	for i := 0; i < 3; i++ {
		if err := c.EnsureDemographicsProfile(nid); err != nil {
			t.Fatalf("ensure call %d failed: %v", i, err)
		}
	}

	profiles, err := c.ListDemographicsProfiles()
	if err != nil {
		t.Fatalf("failed to list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(profiles))
	}
	if string(profiles[0].RawData) != "{}" {
		t.Errorf("raw_data = %q, want {}", profiles[0].RawData)
	}
	if profiles[0].IncomeMedian != nil {
		t.Error("empty profile should have nil income")
	}
}

func TestArticleSentimentBackfill(t *testing.T) {
	c := newTestClient(t)

	published := time.Now().AddDate(0, 0, -10)
	err := c.InsertArticleBatch([]models.NewsArticle{
		{ArticleID: "https://example.com/a", Title: "t", Content: "c", PublishedAt: published, RawData: []byte(`{}`)},
	})
	if err != nil {
		t.Fatalf("failed to insert article: %v", err)
	}

	articles, err := c.ListArticlesSince(time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("failed to list articles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].SentimentScore != nil {
		t.Error("fresh article should have no sentiment score")
	}

	if err := c.SetArticleSentiment(articles[0].ID, 0.42); err != nil {
		t.Fatalf("failed to set sentiment: %v", err)
	}
	articles, _ = c.ListArticlesSince(time.Now().AddDate(0, 0, -30))
	if articles[0].SentimentScore == nil || *articles[0].SentimentScore != 0.42 {
		t.Errorf("sentiment = %v, want 0.42", articles[0].SentimentScore)
	}

	// Articles outside the window stay hidden.
	got, err := c.ListArticlesSince(time.Now().AddDate(0, 0, -5))
	if err != nil {
		t.Fatalf("failed to list articles: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d articles in a 5-day window, want 0", len(got))
	}
}

func TestScoreRunWritesBothTables(t *testing.T) {
	c := newTestClient(t)
	nid := seedNeighborhood(t, c, "Allentown")

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 1, 0)

	for i, at := range []time.Time{first, second} {
		err := c.InsertScoreRun([]models.Score{{
			NeighborhoodID:      nid,
			CrimeScore:          0.9,
			InfrastructureScore: 0.5,
			DemographicScore:    0.5,
			SentimentScore:      0.5,
			ProfitabilityScore:  60.0 + float64(i),
			CalculatedAt:        at,
		}})
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	latest, err := c.LatestScore(nid)
	if err != nil {
		t.Fatalf("failed to get latest score: %v", err)
	}
	if latest.ProfitabilityScore != 61.0 {
		t.Errorf("latest profitability = %v, want 61.0", latest.ProfitabilityScore)
	}

	history, err := c.ListScoreHistory(nid)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history rows, want 2", len(history))
	}
	if !history[0].CalculatedAt.Before(history[1].CalculatedAt) {
		t.Error("history should be ordered oldest first")
	}

	all, err := c.LatestScores()
	if err != nil {
		t.Fatalf("failed to list latest scores: %v", err)
	}
	if s, ok := all[nid]; !ok || s.ProfitabilityScore != 61.0 {
		t.Errorf("LatestScores[%d] = %+v, want profitability 61.0", nid, s)
	}
}

func TestLatestScoreNotFound(t *testing.T) {
	c := newTestClient(t)
	nid := seedNeighborhood(t, c, "Allentown")
	if _, err := c.LatestScore(nid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
