package models

import "time"

type Neighborhood struct {
	ID        int64
	Name      string
	Boundary  []byte // GeoJSON Polygon or MultiPolygon, WGS84
	CreatedAt time.Time
}

type CrimeIncident struct {
	ID             int64
	IncidentID     string
	Date           time.Time
	Location       string
	OffenseType    string
	Severity       string // violent, property, other
	Latitude       *float64
	Longitude      *float64
	NeighborhoodID *int64
	RawData        []byte
	CreatedAt      time.Time
}

type BuildingPermit struct {
	ID             int64
	PermitID       string
	PermitType     string
	Location       string
	Date           time.Time
	Status         string
	Value          *float64
	ProjectType    string // commercial, residential, minor
	Latitude       *float64
	Longitude      *float64
	NeighborhoodID *int64
	RawData        []byte
	CreatedAt      time.Time
}

type DemographicsProfile struct {
	ID               int64
	NeighborhoodID   int64
	IncomeMedian     *float64
	AgeMedian        *float64
	HouseholdSizeAvg *float64
	Population       *int64
	RawData          []byte
	UpdatedAt        time.Time
}

type NewsArticle struct {
	ID             int64
	ArticleID      string
	Title          string
	Content        string
	PublishedAt    time.Time
	Source         string
	URL            string
	SentimentScore *float64 // polarity compound, backfilled by the processor
	NeighborhoodID *int64
	RawData        []byte
	CreatedAt      time.Time
}

// Score is one aggregation result for one neighborhood. The same shape is
// written to both the scores table and the append-only score_history table.
type Score struct {
	ID                  int64
	NeighborhoodID      int64
	CrimeScore          float64
	InfrastructureScore float64
	DemographicScore    float64
	SentimentScore      float64
	ProfitabilityScore  float64
	CalculatedAt        time.Time
}
