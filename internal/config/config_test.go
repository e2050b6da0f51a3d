package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/pool"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "reflective", cfg.Backend)
	assert.Equal(t, 256, cfg.Pool.CacheSize)
	assert.False(t, cfg.TrackImplementors)
}

func TestLoad_ConfigFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `
backend: pool
track_implementors: true
pool:
  cache_size: 8
  resources: units
store:
  path: snaps.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classmodel.yaml"), []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pool", cfg.Backend)
	assert.True(t, cfg.TrackImplementors)
	assert.Equal(t, 8, cfg.Pool.CacheSize)
	assert.Equal(t, "units", cfg.Pool.Resources)
	assert.Equal(t, "snaps.db", cfg.Store.Path)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  dir: idx\nbackend: index\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "index", cfg.Backend)
	assert.Equal(t, "idx", cfg.Index.Dir)
	assert.Equal(t, pool.DefaultCacheSize, cfg.Pool.CacheSize)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLASSMODEL_BACKEND", "pool")
	t.Setenv("CLASSMODEL_POOL_CACHE_SIZE", "12")
	t.Setenv("CLASSMODEL_TRACK_IMPLEMENTORS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pool", cfg.Backend)
	assert.Equal(t, 12, cfg.Pool.CacheSize)
	assert.True(t, cfg.TrackImplementors)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"pool", func(c *Config) { c.Backend = "pool" }, ""},
		{"index with dir", func(c *Config) { c.Backend = "index"; c.Index.Dir = "x" }, ""},
		{"index without dir", func(c *Config) { c.Backend = "index" }, "index.dir is required"},
		{"unknown backend", func(c *Config) { c.Backend = "bytecode" }, `got: "bytecode"`},
		{"zero cache", func(c *Config) { c.Pool.CacheSize = 0 }, "pool.cache_size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.cue"), []byte("package demo\n"+demo.IndexSource), 0o644))

	for _, tt := range []struct {
		cfg  *Config
		want string
	}{
		{&Config{Backend: "reflective"}, reflective.BackendName},
		{&Config{Backend: "index", Index: IndexConfig{Dir: dir}}, index.BackendName},
		{&Config{Backend: "pool", Pool: PoolConfig{CacheSize: 4}}, pool.BackendName},
	} {
		b, err := tt.cfg.NewBackend()
		require.NoError(t, err, tt.want)
		assert.Equal(t, tt.want, b.Name())
	}

	_, err := (&Config{Backend: "index", Index: IndexConfig{Dir: filepath.Join(dir, "missing")}}).NewBackend()
	require.Error(t, err)
}

func TestOptionsBuildContext(t *testing.T) {
	cfg := Default()
	cfg.Backend = "pool"
	cfg.TrackImplementors = true

	opts, err := cfg.Options(zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, err := model.NewContext(demo.Units(), opts)
	require.NoError(t, err)
	assert.Equal(t, pool.BackendName, ctx.Backend().Name())
	assert.True(t, ctx.Classes().TracksImplementors())

	person, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)
	assert.Equal(t, "demo.Person", person.Name())
}
