package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. NOTEWATCH_ANOMALY_THRESHOLD.
const EnvPrefix = "NOTEWATCH"

type Config struct {
	Anomaly struct {
		Threshold     float64 `yaml:"threshold"`
		MaxFeatures   int     `yaml:"max_features"`
		HistoryWindow int     `yaml:"history_window"`
	} `yaml:"anomaly"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Notes struct {
		MaxLength int `yaml:"max_length"`
	} `yaml:"notes"`

	Pipeline struct {
		// Workers <= 0 means runtime.NumCPU().
		Workers int `yaml:"workers"`
	} `yaml:"pipeline"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Anomaly.Threshold = 0.3
	cfg.Anomaly.MaxFeatures = 1000
	cfg.Anomaly.HistoryWindow = 3

	cfg.Database.Path = "notewatch.db"

	cfg.Notes.MaxLength = 10000

	cfg.Pipeline.Workers = 0

	cfg.Logging.Level = "info"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30

	cfg.Metrics.Addr = ""
	return cfg
}

// Load reads path (optional; missing files fall back to defaults), then
// applies NOTEWATCH_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	cfg.Anomaly.Threshold = v.GetFloat64("anomaly.threshold")
	cfg.Anomaly.MaxFeatures = v.GetInt("anomaly.max_features")
	cfg.Anomaly.HistoryWindow = v.GetInt("anomaly.history_window")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Notes.MaxLength = v.GetInt("notes.max_length")
	cfg.Pipeline.Workers = v.GetInt("pipeline.workers")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Logging.MaxSizeMB = v.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = v.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = v.GetInt("logging.max_age_days")
	cfg.Metrics.Addr = v.GetString("metrics.addr")

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("anomaly.threshold", d.Anomaly.Threshold)
	v.SetDefault("anomaly.max_features", d.Anomaly.MaxFeatures)
	v.SetDefault("anomaly.history_window", d.Anomaly.HistoryWindow)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("notes.max_length", d.Notes.MaxLength)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Validate returns every problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error
	if math.IsNaN(c.Anomaly.Threshold) || c.Anomaly.Threshold < 0 || c.Anomaly.Threshold > 1 {
		errs = append(errs, fmt.Errorf("anomaly.threshold must be within [0,1], got %v", c.Anomaly.Threshold))
	}
	if c.Anomaly.MaxFeatures < 1 {
		errs = append(errs, fmt.Errorf("anomaly.max_features must be positive, got %d", c.Anomaly.MaxFeatures))
	}
	if c.Anomaly.HistoryWindow < 2 {
		errs = append(errs, fmt.Errorf("anomaly.history_window must be at least 2, got %d", c.Anomaly.HistoryWindow))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Notes.MaxLength < 1 {
		errs = append(errs, fmt.Errorf("notes.max_length must be positive, got %d", c.Notes.MaxLength))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	return errs
}
