package collect

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/housefly/backend/internal/storage/sqlite"
)

var squareBoundary = []byte(`{"type":"Polygon","coordinates":[[[-78.9,42.8],[-78.8,42.8],[-78.8,42.9],[-78.9,42.9],[-78.9,42.8]]]}`)

func testDB(t *testing.T) *sqlite.Client {
	t.Helper()
	db, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db
}

type fakeCrimeSource struct {
	records []json.RawMessage
	err     error
}

func (f *fakeCrimeSource) FetchIncidents(ctx context.Context, limit int) ([]json.RawMessage, error) {
	return f.records, f.err
}

type fakePermitSource struct {
	records []json.RawMessage
	err     error
}

func (f *fakePermitSource) FetchPermits(ctx context.Context, limit int) ([]json.RawMessage, error) {
	return f.records, f.err
}

type fakeNewsSource struct {
	records []json.RawMessage
	err     error
	calls   int
}

func (f *fakeNewsSource) FetchArticles(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	f.calls++
	return f.records, f.err
}

func TestCrimeCollectorDedup(t *testing.T) {
	db := testDB(t)
	if _, err := db.InsertNeighborhood("Elmwood Village", squareBoundary); err != nil {
		t.Fatalf("failed to insert neighborhood: %v", err)
	}

	source := &fakeCrimeSource{records: []json.RawMessage{
		json.RawMessage(`{"incident_number":"A-1","incident_datetime":"2026-01-15T10:00:00","offense_type":"ASSAULT","latitude":"42.85","longitude":"-78.85"}`),
		json.RawMessage(`{"offense_type":"THEFT"}`),
	}}
	collector := NewCrimeCollector(db, source, 1000, 10)

	added, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("first collect failed: %v", err)
	}
	if added != 1 {
		t.Errorf("first collect added %d, want 1 (record without id skipped)", added)
	}

	added, err = collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("second collect failed: %v", err)
	}
	if added != 0 {
		t.Errorf("second collect added %d, want 0", added)
	}

	incidents, err := db.ListCrimeIncidents()
	if err != nil {
		t.Fatalf("failed to list incidents: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}
	in := incidents[0]
	if in.Severity != "violent" {
		t.Errorf("severity = %q, want violent", in.Severity)
	}
	if in.NeighborhoodID == nil {
		t.Error("incident inside the boundary should be assigned a neighborhood")
	}
}

func TestCrimeCollectorSkipsDuplicateWithinPayload(t *testing.T) {
	db := testDB(t)
	source := &fakeCrimeSource{records: []json.RawMessage{
		json.RawMessage(`{"incident_number":"DUP-1","offense_type":"ASSAULT"}`),
		json.RawMessage(`{"incident_number":"DUP-1","offense_type":"ASSAULT"}`),
		json.RawMessage(`{"incident_number":"OK-2","offense_type":"THEFT"}`),
	}}
	collector := NewCrimeCollector(db, source, 1000, 10)

	added, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if added != 2 {
		t.Errorf("added %d, want 2 (repeated id skipped)", added)
	}

	incidents, err := db.ListCrimeIncidents()
	if err != nil {
		t.Fatalf("failed to list incidents: %v", err)
	}
	if len(incidents) != 2 {
		t.Errorf("got %d incidents, want 2", len(incidents))
	}
}

func TestCrimeCollectorFetchFailurePropagates(t *testing.T) {
	db := testDB(t)
	boom := errors.New("connection refused")
	collector := NewCrimeCollector(db, &fakeCrimeSource{err: boom}, 1000, 10)

	if _, err := collector.Collect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
}

func TestInfrastructureCollectorStoresPermit(t *testing.T) {
	db := testDB(t)
	source := &fakePermitSource{records: []json.RawMessage{
		json.RawMessage(`{"permit_number":"P-9","issue_date":"2026-02-01","permit_type":"New Commercial Building","estimated_cost":"$250,000","location":{"latitude":"42.85","longitude":"-78.85"}}`),
	}}
	collector := NewInfrastructureCollector(db, source, 1000, 10)

	added, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("added %d, want 1", added)
	}

	permits, err := db.ListBuildingPermits()
	if err != nil {
		t.Fatalf("failed to list permits: %v", err)
	}
	p := permits[0]
	if p.ProjectType != "commercial" {
		t.Errorf("project type = %q, want commercial", p.ProjectType)
	}
	if p.Value == nil || *p.Value != 250000 {
		t.Errorf("value = %v, want 250000", p.Value)
	}
	if p.Latitude == nil || *p.Latitude != 42.85 {
		t.Errorf("nested coordinates not decoded: %v", p.Latitude)
	}
}

func TestSentimentCollectorDegradesToFallback(t *testing.T) {
	db := testDB(t)
	primary := &fakeNewsSource{err: errors.New("dns failure")}
	fallback := &fakeNewsSource{}
	collector := NewSentimentCollector(db, primary, fallback, 180, 10)

	added, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect should degrade, not fail: %v", err)
	}
	if added != 0 {
		t.Errorf("added %d, want 0", added)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback called %d times, want 1", fallback.calls)
	}
}

func TestSentimentCollectorStoresArticles(t *testing.T) {
	db := testDB(t)
	primary := &fakeNewsSource{records: []json.RawMessage{
		json.RawMessage(`{"title":"Elmwood Village cafe thrives","description":"<p>A <b>great</b> opening</p>","url":"https://example.com/a1","publishedAt":"2026-08-01T12:00:00Z","source":{"name":"Example"}}`),
	}}
	collector := NewSentimentCollector(db, primary, &FallbackNewsSource{}, 180, 10)

	added, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("added %d, want 1", added)
	}

	articles, err := db.ListArticlesSince(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("failed to list articles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].Content != "A great opening" {
		t.Errorf("content = %q, want markup stripped", articles[0].Content)
	}
}

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		offense string
		want    string
	}{
		{"AGGRAVATED ASSAULT", "violent"},
		{"Robbery", "violent"},
		{"LARCENY/THEFT", "property"},
		{"Arson", "property"},
		{"NOISE COMPLAINT", "other"},
		{"", "other"},
	}
	for _, c := range cases {
		if got := classifySeverity(c.offense); got != c.want {
			t.Errorf("classifySeverity(%q) = %q, want %q", c.offense, got, c.want)
		}
	}
}

func TestClassifyProjectType(t *testing.T) {
	big := 500000.0
	small := 5000.0
	cases := []struct {
		permitType string
		value      *float64
		want       string
	}{
		{"New Retail Space", nil, "commercial"},
		{"Single Family Dwelling", nil, "residential"},
		{"Misc Permit", &big, "commercial"},
		{"Misc Permit", &small, "minor"},
		{"Misc Permit", nil, "minor"},
	}
	for _, c := range cases {
		if got := classifyProjectType(c.permitType, c.value); got != c.want {
			t.Errorf("classifyProjectType(%q, %v) = %q, want %q", c.permitType, c.value, got, c.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-15T10:30:00Z", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2026-01-15T10:30:00.000", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2026-01-15T10:30:00", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"not a date", now},
		{"", now},
	}
	for _, c := range cases {
		if got := parseTimestamp(c.in, now); !got.Equal(c.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFlexFloat(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{`1250000`, ptr(1250000.0)},
		{`"$1,250,000"`, ptr(1250000.0)},
		{`"42.5"`, ptr(42.5)},
		{`"n/a"`, nil},
		{`null`, nil},
		{`{"a":1}`, nil},
	}
	for _, c := range cases {
		got := flexFloat(json.RawMessage(c.in))
		switch {
		case c.want == nil && got != nil:
			t.Errorf("flexFloat(%s) = %v, want nil", c.in, *got)
		case c.want != nil && (got == nil || *got != *c.want):
			t.Errorf("flexFloat(%s) = %v, want %v", c.in, got, *c.want)
		}
	}
}

func ptr(v float64) *float64 { return &v }

func TestDecodeCoordinates(t *testing.T) {
	flat := decodeCoordinates(json.RawMessage(`{"latitude":"42.9","longitude":"-78.85"}`))
	if flat.Latitude == nil || *flat.Latitude != 42.9 {
		t.Errorf("flat shape not decoded: %+v", flat)
	}

	nested := decodeCoordinates(json.RawMessage(`{"location":{"latitude":42.9,"longitude":-78.85}}`))
	if nested.Longitude == nil || *nested.Longitude != -78.85 {
		t.Errorf("nested shape not decoded: %+v", nested)
	}

	none := decodeCoordinates(json.RawMessage(`{"address":"123 Main St"}`))
	if none.Latitude != nil || none.Longitude != nil {
		t.Errorf("unknown shape should decode to nothing: %+v", none)
	}

	partial := decodeCoordinates(json.RawMessage(`{"latitude":"42.9"}`))
	if partial.Latitude != nil {
		t.Errorf("latitude without longitude should decode to nothing: %+v", partial)
	}
}

func TestStripHTML(t *testing.T) {
	if got := stripHTML("plain text"); got != "plain text" {
		t.Errorf("plain text altered: %q", got)
	}
	if got := stripHTML("<p>hello <b>world</b></p>"); got != "hello world" {
		t.Errorf("stripHTML = %q, want %q", got, "hello world")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate = %q, want abc", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Errorf("truncate = %q, want ab", got)
	}
}
