package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"notewatch/internal/config"
)

const BaseDirName = ".notewatch"

type Layout struct {
	Root       string
	ConfigPath string
	DBPath     string
	LogPath    string
}

func EnsureDefault() (*Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home: %w", err)
	}
	return EnsureAt(filepath.Join(home, BaseDirName))
}

// EnsureAt creates the workspace directories under base and writes a default
// config file unless one already exists.
func EnsureAt(base string) (*Layout, error) {
	layout := &Layout{
		Root:       base,
		ConfigPath: filepath.Join(base, "configs", "notewatch.yaml"),
		DBPath:     filepath.Join(base, "data", "notewatch.db"),
		LogPath:    filepath.Join(base, "logs", "notewatch.log"),
	}

	for _, p := range []string{
		filepath.Dir(layout.ConfigPath),
		filepath.Dir(layout.DBPath),
		filepath.Dir(layout.LogPath),
	} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", p, err)
		}
	}

	if _, err := os.Stat(layout.ConfigPath); os.IsNotExist(err) {
		defaults := config.DefaultConfig()
		defaults.Database.Path = layout.DBPath
		defaults.Logging.File = layout.LogPath
		raw, marshalErr := yaml.Marshal(defaults)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshal config: %w", marshalErr)
		}
		if writeErr := os.WriteFile(layout.ConfigPath, raw, 0o644); writeErr != nil {
			return nil, fmt.Errorf("write config: %w", writeErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	return layout, nil
}
