// Package config loads the plantcare settings in three layers: built-in
// defaults, an optional YAML file and PLANTCARE_* environment variables,
// each overriding the previous one.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/vineetsista/Plant-Care-Assistant/internal/training"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "PLANTCARE_"

// PathEnvVar overrides the config file search.
const PathEnvVar = "PLANTCARE_CONFIG"

// DefaultPaths are searched in order when no path is given.
var DefaultPaths = []string{
	"plantcare.yaml",
	"plantcare.yml",
}

// Config is the full application configuration.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Training  TrainingConfig  `koanf:"training"`
	Recommend RecommendConfig `koanf:"recommend"`
	Log       LogConfig       `koanf:"log"`
}

// CatalogConfig locates the plant catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// ArtifactsConfig locates the trained bundles.
type ArtifactsConfig struct {
	Dir string `koanf:"dir"`
}

// TrainingConfig holds the training run settings.
type TrainingConfig struct {
	Seed        int64   `koanf:"seed"`
	TestSize    float64 `koanf:"test_size"`
	NEstimators int     `koanf:"n_estimators"`
	MaxDepth    int     `koanf:"max_depth"` // 0 = unlimited
	CVFolds     int     `koanf:"cv_folds"`  // < 2 disables cross-validation
}

// RecommendConfig seeds the recommender. A negative seed draws a random one.
type RecommendConfig struct {
	Seed int64 `koanf:"seed"`
}

// LogConfig selects the log level and output format ("json" or "console").
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := training.DefaultOptions()
	return &Config{
		Catalog:   CatalogConfig{Path: "data/house_plants.json"},
		Artifacts: ArtifactsConfig{Dir: "artifacts"},
		Training: TrainingConfig{
			Seed:        opts.Seed,
			TestSize:    opts.TestSize,
			NEstimators: opts.NEstimators,
			MaxDepth:    opts.MaxDepth,
			CVFolds:     opts.CVFolds,
		},
		Recommend: RecommendConfig{Seed: -1},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration. path names the YAML file; when empty,
// PLANTCARE_CONFIG and then DefaultPaths are tried, and a missing file is
// not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if explicit {
				return nil, errors.Wrapf(err, "config file %s", path)
			}
		} else if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, errors.Wrap(err, "load environment variables")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.GetLoggerWithName("config").Debug("Configuration loaded", log.PathKey, path)
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps PLANTCARE_TRAINING_TEST_SIZE to training.test_size.
// The first underscore after the prefix separates the section.
// PLANTCARE_CONFIG is not a setting and is skipped.
func envTransformFunc(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, name, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + name
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Catalog.Path == "":
		return errors.NewValueError("config", "catalog.path is required")
	case c.Training.TestSize <= 0 || c.Training.TestSize >= 1:
		return errors.NewValueError("config", "training.test_size must be in (0, 1)")
	case c.Training.NEstimators < 1:
		return errors.NewValueError("config", "training.n_estimators must be positive")
	case c.Training.Seed < 0:
		return errors.NewValueError("config", "training.seed must be non-negative")
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValueError("config", "log.level: "+err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errors.NewValueError("config", "log.format must be 'json' or 'console'")
	}
	return nil
}

// TrainingOptions converts the training section for training.Train.
func (c *Config) TrainingOptions() training.Options {
	return training.Options{
		Seed:        c.Training.Seed,
		TestSize:    c.Training.TestSize,
		NEstimators: c.Training.NEstimators,
		MaxDepth:    c.Training.MaxDepth,
		CVFolds:     c.Training.CVFolds,
		ArtifactDir: c.Artifacts.Dir,
	}
}
