package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Sources  SourcesConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type SourcesConfig struct {
	CrimeURL     string
	PermitsURL   string
	NewsURL      string
	NewsAPIKey   string
	NewsQuery    string
	FetchLimit   int
	TimeoutSec   int
	NewsDaysBack int
}

type PipelineConfig struct {
	WeightsPath string
	BatchSize   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/housefly")

	viper.SetEnvPrefix("HOUSEFLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 600)

	viper.SetDefault("sqlite.path", "./data/housefly.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("sources.crimeURL", "https://data.buffalony.gov/resource/d6g9-xbgu.json")
	viper.SetDefault("sources.permitsURL", "https://data.buffalony.gov/resource/9p2d-f3yt.json")
	viper.SetDefault("sources.newsURL", "https://gnews.io/api/v4/search")
	viper.SetDefault("sources.newsQuery", "Buffalo NY OR Buffalo, New York")
	viper.SetDefault("sources.fetchLimit", 10000)
	viper.SetDefault("sources.timeoutSec", 30)
	viper.SetDefault("sources.newsDaysBack", 180)

	viper.SetDefault("pipeline.weightsPath", "./config/weights.yaml")
	viper.SetDefault("pipeline.batchSize", 100)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

// Weights holds the subscore weights for the composite profitability score.
// The four values must each sit in [0,1] and sum to 1.0 within a 0.001
// tolerance; an invalid set aborts the aggregation run before any write.
type Weights struct {
	Crime          float64 `mapstructure:"crime_weight"`
	Infrastructure float64 `mapstructure:"infrastructure_weight"`
	Demographic    float64 `mapstructure:"demographic_weight"`
	Sentiment      float64 `mapstructure:"sentiment_weight"`
}

func DefaultWeights() Weights {
	return Weights{
		Crime:          0.25,
		Infrastructure: 0.25,
		Demographic:    0.25,
		Sentiment:      0.25,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"crime_weight":          w.Crime,
		"infrastructure_weight": w.Infrastructure,
		"demographic_weight":    w.Demographic,
		"sentiment_weight":      w.Sentiment,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}

	total := w.Crime + w.Infrastructure + w.Demographic + w.Sentiment
	if math.Abs(total-1.0) > 0.001 {
		return fmt.Errorf("weights must sum to 1.0, got %v", total)
	}

	return nil
}

// LoadWeights reads the weights file at path, falling back to the compiled-in
// defaults when the file does not exist.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()

	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return Weights{}, fmt.Errorf("failed to read weights file: %w", err)
		}
		if err := v.Unmarshal(&w); err != nil {
			return Weights{}, fmt.Errorf("failed to unmarshal weights: %w", err)
		}
	}

	if err := w.Validate(); err != nil {
		return Weights{}, err
	}

	return w, nil
}
