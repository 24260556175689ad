package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/housefly/backend/internal/geo"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/config"
	appLogger "github.com/housefly/backend/pkg/logger"
	"github.com/housefly/backend/pkg/retry"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Geometry   json.RawMessage            `json:"geometry"`
}

// nameKeys are tried in order against the feature properties. Open data
// portals are not consistent about the property name.
var nameKeys = []string{"name", "NAME", "Neighborhood", "nbhdname"}

func main() {
	filePath := flag.String("file", "", "path to a GeoJSON FeatureCollection")
	url := flag.String("url", "", "URL to download the FeatureCollection from")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if *filePath == "" && *url == "" {
		appLogger.Fatal("Either -file or -url is required")
	}

	data, err := readSource(*filePath, *url)
	if err != nil {
		appLogger.Fatal("Failed to read boundary source", zap.Error(err))
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		appLogger.Fatal("Failed to parse GeoJSON", zap.Error(err))
	}
	if fc.Type != "FeatureCollection" {
		appLogger.Fatal("Expected a FeatureCollection", zap.String("type", fc.Type))
	}

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	inserted, skipped := 0, 0
	for i, f := range fc.Features {
		name := featureName(f)
		if name == "" {
			appLogger.Warn("Feature without a usable name property, skipping", zap.Int("index", i))
			skipped++
			continue
		}

		if _, err := geo.DecodeGeometry(f.Geometry); err != nil {
			appLogger.Warn("Feature with invalid geometry, skipping",
				zap.String("name", name), zap.Error(err))
			skipped++
			continue
		}

		exists, err := db.NeighborhoodExists(name)
		if err != nil {
			appLogger.Fatal("Failed to check neighborhood", zap.String("name", name), zap.Error(err))
		}
		if exists {
			skipped++
			continue
		}

		if _, err := db.InsertNeighborhood(name, f.Geometry); err != nil {
			appLogger.Fatal("Failed to insert neighborhood", zap.String("name", name), zap.Error(err))
		}
		inserted++
	}

	appLogger.Info("Boundary load complete",
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
		zap.Int("total", len(fc.Features)),
	)
}

func readSource(filePath, url string) ([]byte, error) {
	if filePath != "" {
		return os.ReadFile(filePath)
	}
	return download(url)
}

func download(url string) ([]byte, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	cfg := retry.DefaultConfig()
	cfg.Logger = appLogger.Log

	return retry.DoWithResult(context.Background(), cfg, func() ([]byte, error) {
		resp, err := client.Get(url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	})
}

func featureName(f feature) string {
	for _, key := range nameKeys {
		raw, ok := f.Properties[key]
		if !ok {
			continue
		}
		var name string
		if err := json.Unmarshal(raw, &name); err == nil && name != "" {
			return name
		}
	}
	return ""
}
