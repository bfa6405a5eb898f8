package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-outbreak/anomaly"
	"go-outbreak/db"
)

const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

type Config struct {
	Port      string
	ClientURL string

	Store struct {
		Backend             string
		FirebaseCredentials string
		FirebaseProjectID   string
		Postgres            db.PostgresConfig
	}

	Redis struct {
		Enabled        bool
		Addr           string
		Password       string
		DB             int
		KeyPrefix      string
		ClustersStream string
		AlertsStream   string
		ReportsStream  string
		ConsumerGroup  string
		ConsumerName   string
	}

	Detection struct {
		RadiusKM  float64
		MinPoints int
		Lookback  time.Duration
		Schedule  string
		Timeout   time.Duration
	}

	Forecast struct {
		TTL       time.Duration
		Jitter    float64
		CacheSize int
	}

	Anomaly struct {
		Threshold float64
		Metrics   []anomaly.Metric
	}

	Integrations struct {
		OpenAIKey                  string
		MapsKey                    string
		NaturalLanguageCredentials string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string
	parse := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	cfg.Port = getEnv("PORT", "8080")
	cfg.ClientURL = getEnv("CLIENT_URL", "")

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore))
	cfg.Store.FirebaseCredentials = getEnv("FIREBASE_CREDENTIALS", "")
	cfg.Store.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", "")
	cfg.Store.Postgres = db.PostgresConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "outbreak"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	var err error
	cfg.Store.Postgres.MaxConns, err = getInt("DB_MAX_CONNS", 10)
	parse("DB_MAX_CONNS", err)
	cfg.Store.Postgres.MaxIdle, err = getInt("DB_MAX_IDLE", 5)
	parse("DB_MAX_IDLE", err)

	cfg.Redis.Enabled, err = getBool("REDIS_ENABLED", false)
	parse("REDIS_ENABLED", err)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB, err = getInt("REDIS_DB", 0)
	parse("REDIS_DB", err)
	cfg.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", "outbreak:")
	cfg.Redis.ClustersStream = getEnv("CLUSTERS_STREAM", "outbreak:clusters")
	cfg.Redis.AlertsStream = getEnv("ALERTS_STREAM", "outbreak:alerts")
	cfg.Redis.ReportsStream = getEnv("REPORTS_STREAM", "outbreak:reports")
	cfg.Redis.ConsumerGroup = getEnv("REPORTS_CONSUMER_GROUP", "outbreak-detector-group")
	cfg.Redis.ConsumerName = getEnv("REPORTS_CONSUMER_NAME", "outbreak-detector-1")

	cfg.Detection.RadiusKM, err = getFloat("CLUSTER_RADIUS_KM", 55.5)
	parse("CLUSTER_RADIUS_KM", err)
	cfg.Detection.MinPoints, err = getInt("CLUSTER_MIN_POINTS", 3)
	parse("CLUSTER_MIN_POINTS", err)
	days, err := getInt("DETECTION_LOOKBACK_DAYS", 14)
	parse("DETECTION_LOOKBACK_DAYS", err)
	cfg.Detection.Lookback = time.Duration(days) * 24 * time.Hour
	cfg.Detection.Schedule = getEnv("DETECTION_SCHEDULE", "*/10 * * * *")
	cfg.Detection.Timeout, err = getDuration("DETECTION_TIMEOUT", 2*time.Minute)
	parse("DETECTION_TIMEOUT", err)

	cfg.Forecast.TTL, err = getDuration("PREDICTION_TTL", time.Hour)
	parse("PREDICTION_TTL", err)
	cfg.Forecast.Jitter, err = getFloat("FORECAST_JITTER", 0)
	parse("FORECAST_JITTER", err)
	cfg.Forecast.CacheSize, err = getInt("PREDICTION_CACHE_SIZE", 1024)
	parse("PREDICTION_CACHE_SIZE", err)

	cfg.Anomaly.Threshold, err = getFloat("ANOMALY_THRESHOLD", 2.0)
	parse("ANOMALY_THRESHOLD", err)
	cfg.Anomaly.Metrics, err = anomaly.ParseMetrics(getEnv("ANOMALY_METRICS", string(anomaly.MetricCaseCount)))
	parse("ANOMALY_METRICS", err)

	cfg.Integrations.OpenAIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Integrations.MapsKey = getEnv("MAPS_CREDENTIALS", "")
	cfg.Integrations.NaturalLanguageCredentials = getEnv("NATURAL_LANGUAGE_CREDENTIALS", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreFirestore:
		if c.Store.FirebaseCredentials == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS is required for the %s store", StoreFirestore)
		}
	case StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Forecast.Jitter < 0 || c.Forecast.Jitter > 1 {
		return fmt.Errorf("FORECAST_JITTER must be within [0, 1], got %v", c.Forecast.Jitter)
	}
	if c.Forecast.CacheSize <= 0 {
		return fmt.Errorf("PREDICTION_CACHE_SIZE must be positive, got %d", c.Forecast.CacheSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
