package config

import (
	"testing"

	"gocp/app"
	"gocp/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CP_WORKERS", "CP_SMOOTHING", "CP_SEED", "CP_LABEL_CONDITIONAL", "CP_GRID_RESOLUTION",
	"CP_SIGNIFICANCE", "CP_NONCONFORMITY", "CP_REGRESSION_NONCONFORMITY", "CP_INTERVAL_RULE",
	"CP_MAX_CONCURRENT_REFITS", "CP_LOG_LEVEL", "LOG_LEVEL", "CP_SNAPSHOT_DIR",
	"CP_DATABASE_URL", "DATABASE_URL", "CP_ADDR", "CP_MAX_BATCH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CP_WORKERS", "3")
	t.Setenv("CP_SMOOTHING", "false")
	t.Setenv("CP_SEED", "42")
	t.Setenv("CP_LABEL_CONDITIONAL", "true")
	t.Setenv("CP_GRID_RESOLUTION", "10")
	t.Setenv("CP_SIGNIFICANCE", "0.05")
	t.Setenv("CP_NONCONFORMITY", "svm-distance")
	t.Setenv("CP_REGRESSION_NONCONFORMITY", "squared_error")
	t.Setenv("CP_INTERVAL_RULE", "Quantile")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EngineConfig{Workers: 3, Smoothing: false, Seed: 42}, cfg.Engine)
	assert.True(t, cfg.Predictor.LabelConditional)
	assert.Equal(t, 10, cfg.Predictor.GridResolution)
	assert.Equal(t, 0.05, cfg.Predictor.Significance)
	assert.Equal(t, "svm-distance", cfg.Predictor.Nonconformity)
	assert.Equal(t, app.IntervalQuantile, cfg.Predictor.IntervalRule)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadServerAndDatabase(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://fallback")
	t.Setenv("CP_ADDR", "127.0.0.1:9000")
	t.Setenv("CP_MAX_BATCH", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback", cfg.Database.URL)
	assert.Equal(t, ServerConfig{Addr: "127.0.0.1:9000", MaxBatch: 50}, cfg.Server)

	t.Setenv("CP_DATABASE_URL", "postgres://primary")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary", cfg.Database.URL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CP_WORKERS", "many"},
		{"CP_WORKERS", "-1"},
		{"CP_SMOOTHING", "sometimes"},
		{"CP_SIGNIFICANCE", "1"},
		{"CP_SIGNIFICANCE", "0"},
		{"CP_GRID_RESOLUTION", "0"},
		{"CP_NONCONFORMITY", "random_forest"},
		{"CP_REGRESSION_NONCONFORMITY", "hinge_loss"},
		{"CP_INTERVAL_RULE", "median"},
		{"CP_MAX_CONCURRENT_REFITS", "-2"},
		{"CP_MAX_BATCH", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
