package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plantcare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "data/house_plants.json", cfg.Catalog.Path)
	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, 200, cfg.Training.NEstimators)
	assert.Equal(t, int64(-1), cfg.Recommend.Seed)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeYAML(t, `
catalog:
  path: /srv/plants.json
training:
  seed: 7
  n_estimators: 50
  cv_folds: 5
log:
  level: debug
`)
	t.Setenv("PLANTCARE_TRAINING_N_ESTIMATORS", "25")
	t.Setenv("PLANTCARE_ARTIFACTS_DIR", "/tmp/bundles")
	t.Setenv("PLANTCARE_TRAINING_TEST_SIZE", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/plants.json", cfg.Catalog.Path)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.Equal(t, 25, cfg.Training.NEstimators, "env overrides file")
	assert.Equal(t, 0.25, cfg.Training.TestSize)
	assert.Equal(t, 5, cfg.Training.CVFolds)
	assert.Equal(t, "/tmp/bundles", cfg.Artifacts.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format, "untouched keys keep defaults")

	opts := cfg.TrainingOptions()
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, 25, opts.NEstimators)
	assert.Equal(t, "/tmp/bundles", opts.ArtifactDir)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeYAML(t, "recommend:\n  seed: 11\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(11), cfg.Recommend.Seed)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeYAML(t, "training: [unclosed"))
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"test size too large", "training:\n  test_size: 1.5\n"},
		{"no trees", "training:\n  n_estimators: 0\n"},
		{"negative seed", "training:\n  seed: -3\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"empty catalog path", "catalog:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.yaml))
			var valueErr *errors.ValueError
			assert.True(t, errors.As(err, &valueErr), "got %v", err)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PLANTCARE_CATALOG_PATH", "catalog.path"},
		{"PLANTCARE_TRAINING_TEST_SIZE", "training.test_size"},
		{"PLANTCARE_LOG_LEVEL", "log.level"},
		{"PLANTCARE_CONFIG", ""},
		{"PLANTCARE_VERBOSE", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envTransformFunc(tt.in), tt.in)
	}
}
