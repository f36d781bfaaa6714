package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gocp/adapters/nonconformity"
	"gocp/app"
	"gocp/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine    EngineConfig
	Predictor PredictorConfig
	Logging   LoggingConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Server    ServerConfig
}

// EngineConfig holds p-value engine and scheduling settings
type EngineConfig struct {
	// Workers bounds batch parallelism; 0 means GOMAXPROCS.
	Workers   int
	Smoothing bool
	// Seed drives the smoothing draws; 0 means time seeded.
	Seed int64
}

// PredictorConfig holds conformal predictor settings
type PredictorConfig struct {
	LabelConditional        bool
	GridResolution          int
	Significance            float64
	Nonconformity           string
	RegressionNonconformity string
	IntervalRule            app.IntervalRule
	MaxConcurrentRefits     int64
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// StorageConfig holds snapshot storage settings
type StorageConfig struct {
	SnapshotDir string
}

// DatabaseConfig holds database connection settings. An empty URL keeps
// snapshots on disk.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds prediction API settings
type ServerConfig struct {
	Addr string
	// MaxBatch bounds the rows accepted by one batch request.
	MaxBatch int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	engine, err := loadEngineConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load engine configuration")
	}
	predictor, err := loadPredictorConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load predictor configuration")
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load server configuration")
	}

	config := &Config{
		Engine:    *engine,
		Predictor: *predictor,
		Logging:   LoggingConfig{Level: getEnvOrDefault("CP_LOG_LEVEL", getEnvOrDefault("LOG_LEVEL", "INFO"))},
		Storage:   StorageConfig{SnapshotDir: getEnvOrDefault("CP_SNAPSHOT_DIR", "./snapshots")},
		Database:  DatabaseConfig{URL: getEnvOrDefault("CP_DATABASE_URL", getEnvOrDefault("DATABASE_URL", ""))},
		Server:    *server,
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{Smoothing: true},
		Predictor: PredictorConfig{
			GridResolution:          5,
			Significance:            0.1,
			Nonconformity:           nonconformity.KindClassProbability,
			RegressionNonconformity: nonconformity.KindAbsoluteError,
			IntervalRule:            app.IntervalLowerRank,
		},
		Logging: LoggingConfig{Level: "INFO"},
		Storage: StorageConfig{SnapshotDir: "./snapshots"},
		Server:  ServerConfig{Addr: ":8080", MaxBatch: 1000},
	}
}

func loadEngineConfig() (*EngineConfig, error) {
	workers, err := getEnvInt("CP_WORKERS", 0)
	if err != nil {
		return nil, err
	}
	seed, err := getEnvInt64("CP_SEED", 0)
	if err != nil {
		return nil, err
	}
	smoothing, err := getEnvBool("CP_SMOOTHING", true)
	if err != nil {
		return nil, err
	}
	return &EngineConfig{Workers: workers, Smoothing: smoothing, Seed: seed}, nil
}

func loadPredictorConfig() (*PredictorConfig, error) {
	labelConditional, err := getEnvBool("CP_LABEL_CONDITIONAL", false)
	if err != nil {
		return nil, err
	}
	resolution, err := getEnvInt("CP_GRID_RESOLUTION", 5)
	if err != nil {
		return nil, err
	}
	significance, err := getEnvFloat("CP_SIGNIFICANCE", 0.1)
	if err != nil {
		return nil, err
	}
	refits, err := getEnvInt64("CP_MAX_CONCURRENT_REFITS", 0)
	if err != nil {
		return nil, err
	}
	return &PredictorConfig{
		LabelConditional:        labelConditional,
		GridResolution:          resolution,
		Significance:            significance,
		Nonconformity:           getEnvOrDefault("CP_NONCONFORMITY", nonconformity.KindClassProbability),
		RegressionNonconformity: getEnvOrDefault("CP_REGRESSION_NONCONFORMITY", nonconformity.KindAbsoluteError),
		IntervalRule:            app.IntervalRule(strings.ToLower(getEnvOrDefault("CP_INTERVAL_RULE", string(app.IntervalLowerRank)))),
		MaxConcurrentRefits:     refits,
	}, nil
}

func loadServerConfig() (*ServerConfig, error) {
	maxBatch, err := getEnvInt("CP_MAX_BATCH", 1000)
	if err != nil {
		return nil, err
	}
	return &ServerConfig{
		Addr:     getEnvOrDefault("CP_ADDR", ":8080"),
		MaxBatch: maxBatch,
	}, nil
}

func validateConfig(config *Config) error {
	if config.Engine.Workers < 0 {
		return errors.ConfigInvalid("CP_WORKERS must not be negative")
	}
	p := config.Predictor
	if p.GridResolution < 1 {
		return errors.ConfigInvalid("CP_GRID_RESOLUTION must be at least 1")
	}
	if !(p.Significance > 0 && p.Significance < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("CP_SIGNIFICANCE must lie in (0, 1), got %v", p.Significance))
	}
	if !nonconformity.IsClassificationKind(p.Nonconformity) {
		return errors.ConfigInvalid(fmt.Sprintf("unknown nonconformity function %q (want one of %s)",
			p.Nonconformity, strings.Join(nonconformity.ClassificationKinds(), ", ")))
	}
	if !nonconformity.IsRegressionKind(p.RegressionNonconformity) {
		return errors.ConfigInvalid(fmt.Sprintf("unknown regression nonconformity function %q (want one of %s)",
			p.RegressionNonconformity, strings.Join(nonconformity.RegressionKinds(), ", ")))
	}
	switch p.IntervalRule {
	case app.IntervalLowerRank, app.IntervalQuantile:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown interval rule %q", p.IntervalRule))
	}
	if p.MaxConcurrentRefits < 0 {
		return errors.ConfigInvalid("CP_MAX_CONCURRENT_REFITS must not be negative")
	}
	if config.Server.MaxBatch < 1 {
		return errors.ConfigInvalid("CP_MAX_BATCH must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing. Unlike plain defaults,
// a set but malformed value is an error rather than silently ignored.
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s: %q is not an integer", key, value))
	}
	return intValue, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s: %q is not an integer", key, value))
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s: %q is not a number", key, value))
	}
	return floatValue, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(fmt.Sprintf("%s: %q is not a boolean", key, value))
	}
	return boolValue, nil
}
