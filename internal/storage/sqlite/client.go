package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/storage/models"
	"github.com/housefly/backend/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS neighborhoods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		boundary TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_neighborhoods_name ON neighborhoods(name);

	CREATE TABLE IF NOT EXISTS crime_incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id TEXT UNIQUE NOT NULL,
		date INTEGER NOT NULL,
		location TEXT,
		offense_type TEXT,
		severity TEXT,
		latitude REAL,
		longitude REAL,
		neighborhood_id INTEGER REFERENCES neighborhoods(id),
		raw_data TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_crime_neighborhood ON crime_incidents(neighborhood_id);
	CREATE INDEX IF NOT EXISTS idx_crime_date ON crime_incidents(date);

	CREATE TABLE IF NOT EXISTS building_permits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		permit_id TEXT UNIQUE NOT NULL,
		permit_type TEXT,
		location TEXT,
		date INTEGER NOT NULL,
		status TEXT,
		value REAL,
		project_type TEXT,
		latitude REAL,
		longitude REAL,
		neighborhood_id INTEGER REFERENCES neighborhoods(id),
		raw_data TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_permits_neighborhood ON building_permits(neighborhood_id);
	CREATE INDEX IF NOT EXISTS idx_permits_date ON building_permits(date);

	CREATE TABLE IF NOT EXISTS demographics_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER UNIQUE NOT NULL REFERENCES neighborhoods(id),
		income_median REAL,
		age_median REAL,
		household_size_avg REAL,
		population INTEGER,
		raw_data TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS news_articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id TEXT UNIQUE NOT NULL,
		title TEXT,
		content TEXT,
		published_at INTEGER NOT NULL,
		source TEXT,
		url TEXT,
		sentiment_score REAL,
		neighborhood_id INTEGER REFERENCES neighborhoods(id),
		raw_data TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON news_articles(published_at);

	CREATE TABLE IF NOT EXISTS scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id),
		crime_score REAL NOT NULL,
		infrastructure_score REAL NOT NULL,
		demographic_score REAL NOT NULL,
		sentiment_score REAL NOT NULL,
		profitability_score REAL NOT NULL,
		calculated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scores_neighborhood ON scores(neighborhood_id, calculated_at);

	CREATE TABLE IF NOT EXISTS score_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id),
		crime_score REAL NOT NULL,
		infrastructure_score REAL NOT NULL,
		demographic_score REAL NOT NULL,
		sentiment_score REAL NOT NULL,
		profitability_score REAL NOT NULL,
		calculated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_neighborhood ON score_history(neighborhood_id, calculated_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertNeighborhood(name string, boundary []byte) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO neighborhoods (name, boundary, created_at) VALUES (?, ?, ?)`,
		name, string(boundary), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert neighborhood: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get neighborhood id: %w", err)
	}
	return id, nil
}

func (c *Client) NeighborhoodExists(name string) (bool, error) {
	var id int64
	err := c.db.QueryRow(`SELECT id FROM neighborhoods WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check neighborhood: %w", err)
	}
	return true, nil
}

func (c *Client) GetNeighborhood(id int64) (*models.Neighborhood, error) {
	var n models.Neighborhood
	var boundary string
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT id, name, boundary, created_at FROM neighborhoods WHERE id = ?`, id,
	).Scan(&n.ID, &n.Name, &boundary, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get neighborhood: %w", err)
	}

	n.Boundary = []byte(boundary)
	n.CreatedAt = time.Unix(createdAt, 0)
	return &n, nil
}

func (c *Client) ListNeighborhoods() ([]models.Neighborhood, error) {
	rows, err := c.db.Query(`SELECT id, name, boundary, created_at FROM neighborhoods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list neighborhoods: %w", err)
	}
	defer rows.Close()

	var neighborhoods []models.Neighborhood
	for rows.Next() {
		var n models.Neighborhood
		var boundary string
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.Name, &boundary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		n.Boundary = []byte(boundary)
		n.CreatedAt = time.Unix(createdAt, 0)
		neighborhoods = append(neighborhoods, n)
	}

	return neighborhoods, rows.Err()
}

func (c *Client) HasCrimeIncident(incidentID string) (bool, error) {
	var id int64
	err := c.db.QueryRow(`SELECT id FROM crime_incidents WHERE incident_id = ?`, incidentID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check crime incident: %w", err)
	}
	return true, nil
}

// InsertCrimeBatch writes one micro-batch in a single transaction. A failed
// batch leaves previously committed batches in place.
func (c *Client) InsertCrimeBatch(incidents []models.CrimeIncident) error {
	if len(incidents) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO crime_incidents
			(incident_id, date, location, offense_type, severity, latitude, longitude, neighborhood_id, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, in := range incidents {
		_, err := stmt.Exec(
			in.IncidentID, in.Date.Unix(), in.Location, in.OffenseType, in.Severity,
			in.Latitude, in.Longitude, in.NeighborhoodID, string(in.RawData), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert crime incident %s: %w", in.IncidentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crime batch: %w", err)
	}
	return nil
}

func (c *Client) ListCrimeIncidents() ([]models.CrimeIncident, error) {
	rows, err := c.db.Query(`
		SELECT id, incident_id, date, location, offense_type, severity, latitude, longitude, neighborhood_id
		FROM crime_incidents
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list crime incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.CrimeIncident
	for rows.Next() {
		var in models.CrimeIncident
		var date int64
		var location, offenseType, severity sql.NullString
		if err := rows.Scan(&in.ID, &in.IncidentID, &date, &location, &offenseType, &severity,
			&in.Latitude, &in.Longitude, &in.NeighborhoodID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		in.Date = time.Unix(date, 0)
		in.Location = location.String
		in.OffenseType = offenseType.String
		in.Severity = severity.String
		incidents = append(incidents, in)
	}

	return incidents, rows.Err()
}

func (c *Client) HasBuildingPermit(permitID string) (bool, error) {
	var id int64
	err := c.db.QueryRow(`SELECT id FROM building_permits WHERE permit_id = ?`, permitID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check building permit: %w", err)
	}
	return true, nil
}

func (c *Client) InsertPermitBatch(permits []models.BuildingPermit) error {
	if len(permits) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO building_permits
			(permit_id, permit_type, location, date, status, value, project_type, latitude, longitude, neighborhood_id, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, p := range permits {
		_, err := stmt.Exec(
			p.PermitID, p.PermitType, p.Location, p.Date.Unix(), p.Status, p.Value,
			p.ProjectType, p.Latitude, p.Longitude, p.NeighborhoodID, string(p.RawData), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert building permit %s: %w", p.PermitID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit permit batch: %w", err)
	}
	return nil
}

func (c *Client) ListBuildingPermits() ([]models.BuildingPermit, error) {
	rows, err := c.db.Query(`
		SELECT id, permit_id, permit_type, location, date, status, value, project_type, latitude, longitude, neighborhood_id
		FROM building_permits
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list building permits: %w", err)
	}
	defer rows.Close()

	var permits []models.BuildingPermit
	for rows.Next() {
		var p models.BuildingPermit
		var date int64
		var permitType, location, status, projectType sql.NullString
		if err := rows.Scan(&p.ID, &p.PermitID, &permitType, &location, &date, &status,
			&p.Value, &projectType, &p.Latitude, &p.Longitude, &p.NeighborhoodID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p.Date = time.Unix(date, 0)
		p.PermitType = permitType.String
		p.Location = location.String
		p.Status = status.String
		p.ProjectType = projectType.String
		permits = append(permits, p)
	}

	return permits, rows.Err()
}

// EnsureDemographicsProfile creates an empty profile for the neighborhood if
// none exists. Existing profiles are left untouched.
func (c *Client) EnsureDemographicsProfile(neighborhoodID int64) error {
	_, err := c.db.Exec(`
		INSERT INTO demographics_profiles (neighborhood_id, raw_data, updated_at)
		VALUES (?, '{}', ?)
		ON CONFLICT(neighborhood_id) DO NOTHING
	`, neighborhoodID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to ensure demographics profile: %w", err)
	}
	return nil
}

func (c *Client) ListDemographicsProfiles() ([]models.DemographicsProfile, error) {
	rows, err := c.db.Query(`
		SELECT id, neighborhood_id, income_median, age_median, household_size_avg, population, raw_data, updated_at
		FROM demographics_profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list demographics profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.DemographicsProfile
	for rows.Next() {
		var p models.DemographicsProfile
		var raw sql.NullString
		var updatedAt int64
		if err := rows.Scan(&p.ID, &p.NeighborhoodID, &p.IncomeMedian, &p.AgeMedian,
			&p.HouseholdSizeAvg, &p.Population, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p.RawData = []byte(raw.String)
		p.UpdatedAt = time.Unix(updatedAt, 0)
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

func (c *Client) HasNewsArticle(articleID string) (bool, error) {
	var id int64
	err := c.db.QueryRow(`SELECT id FROM news_articles WHERE article_id = ?`, articleID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check news article: %w", err)
	}
	return true, nil
}

func (c *Client) InsertArticleBatch(articles []models.NewsArticle) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO news_articles (article_id, title, content, published_at, source, url, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, a := range articles {
		_, err := stmt.Exec(a.ArticleID, a.Title, a.Content, a.PublishedAt.Unix(),
			a.Source, a.URL, string(a.RawData), now)
		if err != nil {
			return fmt.Errorf("failed to insert news article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article batch: %w", err)
	}
	return nil
}

func (c *Client) ListArticlesSince(since time.Time) ([]models.NewsArticle, error) {
	rows, err := c.db.Query(`
		SELECT id, article_id, title, content, published_at, sentiment_score
		FROM news_articles
		WHERE published_at >= ?
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list news articles: %w", err)
	}
	defer rows.Close()

	var articles []models.NewsArticle
	for rows.Next() {
		var a models.NewsArticle
		var publishedAt int64
		var title, content sql.NullString
		if err := rows.Scan(&a.ID, &a.ArticleID, &title, &content, &publishedAt, &a.SentimentScore); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.Title = title.String
		a.Content = content.String
		a.PublishedAt = time.Unix(publishedAt, 0)
		articles = append(articles, a)
	}

	return articles, rows.Err()
}

// SetArticleSentiment backfills the cached polarity compound on an article.
// This is the only mutation ever applied to a stored raw record.
func (c *Client) SetArticleSentiment(articleID int64, score float64) error {
	_, err := c.db.Exec(`UPDATE news_articles SET sentiment_score = ? WHERE id = ?`, score, articleID)
	if err != nil {
		return fmt.Errorf("failed to set article sentiment: %w", err)
	}
	return nil
}

// InsertScoreRun writes one Score and one ScoreHistory row per neighborhood
// in a single transaction. Either every neighborhood gets new rows or none
// does.
func (c *Client) InsertScoreRun(scores []models.Score) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"scores", "score_history"} {
		stmt, err := tx.Prepare(fmt.Sprintf(`
			INSERT INTO %s (neighborhood_id, crime_score, infrastructure_score, demographic_score, sentiment_score, profitability_score, calculated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		for _, s := range scores {
			_, err := stmt.Exec(s.NeighborhoodID, s.CrimeScore, s.InfrastructureScore,
				s.DemographicScore, s.SentimentScore, s.ProfitabilityScore, s.CalculatedAt.Unix())
			if err != nil {
				stmt.Close()
				return fmt.Errorf("failed to insert score row: %w", err)
			}
		}
		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score run: %w", err)
	}
	return nil
}

func (c *Client) LatestScore(neighborhoodID int64) (*models.Score, error) {
	var s models.Score
	var calculatedAt int64

	err := c.db.QueryRow(`
		SELECT id, neighborhood_id, crime_score, infrastructure_score, demographic_score, sentiment_score, profitability_score, calculated_at
		FROM scores
		WHERE neighborhood_id = ?
		ORDER BY calculated_at DESC, id DESC
		LIMIT 1
	`, neighborhoodID).Scan(&s.ID, &s.NeighborhoodID, &s.CrimeScore, &s.InfrastructureScore,
		&s.DemographicScore, &s.SentimentScore, &s.ProfitabilityScore, &calculatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score: %w", err)
	}

	s.CalculatedAt = time.Unix(calculatedAt, 0)
	return &s, nil
}

// LatestScores returns the most recent score row for every neighborhood that
// has one.
func (c *Client) LatestScores() (map[int64]models.Score, error) {
	rows, err := c.db.Query(`
		SELECT s.id, s.neighborhood_id, s.crime_score, s.infrastructure_score, s.demographic_score, s.sentiment_score, s.profitability_score, s.calculated_at
		FROM scores s
		JOIN (
			SELECT neighborhood_id, MAX(id) AS max_id
			FROM scores
			GROUP BY neighborhood_id
		) latest ON s.id = latest.max_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[int64]models.Score)
	for rows.Next() {
		var s models.Score
		var calculatedAt int64
		if err := rows.Scan(&s.ID, &s.NeighborhoodID, &s.CrimeScore, &s.InfrastructureScore,
			&s.DemographicScore, &s.SentimentScore, &s.ProfitabilityScore, &calculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.CalculatedAt = time.Unix(calculatedAt, 0)
		scores[s.NeighborhoodID] = s
	}

	return scores, rows.Err()
}

// ListScoreHistory returns a neighborhood's history rows ordered by
// calculation time ascending.
func (c *Client) ListScoreHistory(neighborhoodID int64) ([]models.Score, error) {
	rows, err := c.db.Query(`
		SELECT id, neighborhood_id, crime_score, infrastructure_score, demographic_score, sentiment_score, profitability_score, calculated_at
		FROM score_history
		WHERE neighborhood_id = ?
		ORDER BY calculated_at ASC, id ASC
	`, neighborhoodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list score history: %w", err)
	}
	defer rows.Close()

	var history []models.Score
	for rows.Next() {
		var s models.Score
		var calculatedAt int64
		if err := rows.Scan(&s.ID, &s.NeighborhoodID, &s.CrimeScore, &s.InfrastructureScore,
			&s.DemographicScore, &s.SentimentScore, &s.ProfitabilityScore, &calculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.CalculatedAt = time.Unix(calculatedAt, 0)
		history = append(history, s)
	}

	return history, rows.Err()
}
