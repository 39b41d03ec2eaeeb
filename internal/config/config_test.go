package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := Default()
	c.Classifier.Path = "pdfs.txt"
	return c
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 8, c.Mask.KernelSize)
	assert.Equal(t, "audit-cluster", c.Audit.Dir)
	assert.Equal(t, "png", c.Output.Format)
	assert.Equal(t, 1, c.Cluster.Rows)
	assert.Equal(t, 1, c.Workers)

	// a default config only lacks the classifier
	assert.ErrorContains(t, c.Validate(), "classifier.path")
	assert.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"plant class", func(c *Config) { c.Classifier.PlantClass = "" }, "plant_class"},
		{"kernel", func(c *Config) { c.Mask.KernelSize = 0 }, "kernel_size"},
		{"min size", func(c *Config) { c.Filter.MinSize = 0 }, "min_size"},
		{"rows", func(c *Config) { c.Cluster.Rows = 0 }, "rows"},
		{"cols", func(c *Config) { c.Cluster.Cols = -1 }, "cols"},
		{"out dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"format", func(c *Config) { c.Output.Format = "gif" }, "output.format"},
		{"quality", func(c *Config) { c.Output.Quality = 101 }, "quality"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c := validConfig()
	c.Output.Format = "WEBP"
	assert.NoError(t, c.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	c := validConfig()
	c.Filter.MinSize = 250
	c.Output.Format = "webp"
	c.Audit.Debug = true
	require.NoError(t, c.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"filter": {"min_size": 42}, "workers": 4}`), 0644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, c.Filter.MinSize)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, 8, c.Mask.KernelSize)
	assert.Equal(t, "audit-cluster", c.Audit.Dir)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestConversions(t *testing.T) {
	c := validConfig()
	c.Output.Format = "JPG"
	c.Output.Quality = 80
	c.Audit.Debug = true
	c.Cluster.Cols = 3
	c.Output.LazyCrop = true

	pc := c.Processing()
	assert.True(t, pc.LazyCrop)
	assert.Equal(t, "jpg", pc.Format)
	assert.True(t, pc.Debug)
	assert.Equal(t, 3, pc.Cols)
	assert.Equal(t, c.Filter.MinSize, pc.MinSize)

	assert.Equal(t, 80, c.ImageIO().Quality)
	assert.Equal(t, "info", c.Logging().Level)
}

func TestGetConfigPath(t *testing.T) {
	assert.True(t, strings.HasSuffix(GetConfigPath(), "config.json"))
}
