package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.3, cfg.Anomaly.Threshold)
	assert.Equal(t, 1000, cfg.Anomaly.MaxFeatures)
	assert.Equal(t, 3, cfg.Anomaly.HistoryWindow)
	assert.Equal(t, 10000, cfg.Notes.MaxLength)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notewatch.yaml")
	raw := []byte("anomaly:\n  threshold: 0.45\n  history_window: 5\ndatabase:\n  path: /tmp/notes.db\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv("NOTEWATCH_ANOMALY_THRESHOLD", "0.6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Anomaly.Threshold)
	assert.Equal(t, 5, cfg.Anomaly.HistoryWindow)
	assert.Equal(t, "/tmp/notes.db", cfg.Database.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("NOTEWATCH_ANOMALY_THRESHOLD", "1.7")
	t.Setenv("NOTEWATCH_LOGGING_LEVEL", "chatty")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anomaly.threshold")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Anomaly.HistoryWindow = 1
	cfg.Anomaly.MaxFeatures = 0
	cfg.Database.Path = " "
	assert.Len(t, cfg.Validate(), 3)
}

func TestValidateRejectsNaNThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Anomaly.Threshold = math.NaN()
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "anomaly.threshold")
}
