package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notewatch/internal/config"
)

func TestEnsureAtWritesLoadableConfig(t *testing.T) {
	base := filepath.Join(t.TempDir(), BaseDirName)
	layout, err := EnsureAt(base)
	require.NoError(t, err)

	for _, p := range []string{layout.ConfigPath, filepath.Dir(layout.DBPath), filepath.Dir(layout.LogPath)} {
		_, err := os.Stat(p)
		require.NoError(t, err, p)
	}

	cfg, err := config.Load(layout.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, layout.DBPath, cfg.Database.Path)
	assert.Equal(t, layout.LogPath, cfg.Logging.File)
	assert.Equal(t, 0.3, cfg.Anomaly.Threshold)
}

func TestEnsureAtKeepsExistingConfig(t *testing.T) {
	base := t.TempDir()
	layout, err := EnsureAt(base)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(layout.ConfigPath, []byte("anomaly:\n  threshold: 0.5\n"), 0o644))

	_, err = EnsureAt(base)
	require.NoError(t, err)
	raw, err := os.ReadFile(layout.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "anomaly:\n  threshold: 0.5\n", string(raw))
}
