// Package config loads classmodel settings from classmodel.yaml and
// CLASSMODEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/pool"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/model"
)

// EnvPrefix prefixes environment overrides, e.g. CLASSMODEL_POOL_CACHE_SIZE.
const EnvPrefix = "CLASSMODEL"

// Config represents the classmodel configuration
type Config struct {
	Backend           string      `mapstructure:"backend"`
	TrackImplementors bool        `mapstructure:"track_implementors"`
	Index             IndexConfig `mapstructure:"index"`
	Pool              PoolConfig  `mapstructure:"pool"`
	Store             StoreConfig `mapstructure:"store"`
}

// IndexConfig configures the offline index backend.
type IndexConfig struct {
	// Dir holds the CUE index files.
	Dir string `mapstructure:"dir"`
}

// PoolConfig configures the lazy pool backend.
type PoolConfig struct {
	CacheSize int `mapstructure:"cache_size"`
	// Resources is the directory *.unit.yaml files are read from. Empty
	// means the built-in resources of the class loader.
	Resources string `mapstructure:"resources"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend: reflective.BackendName,
		Pool:    PoolConfig{CacheSize: pool.DefaultCacheSize},
		Store:   StoreConfig{Path: ".classmodel/snapshots.db"},
	}
}

// Load reads the configuration. An empty path looks for classmodel.yaml
// in the working directory and falls back to defaults when there is
// none; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("backend", def.Backend)
	v.SetDefault("track_implementors", def.TrackImplementors)
	v.SetDefault("index.dir", def.Index.Dir)
	v.SetDefault("pool.cache_size", def.Pool.CacheSize)
	v.SetDefault("pool.resources", def.Pool.Resources)
	v.SetDefault("store.path", def.Store.Path)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("classmodel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings select a usable backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case reflective.BackendName, pool.BackendName:
	case index.BackendName:
		if c.Index.Dir == "" {
			return fmt.Errorf("index.dir is required for the %s backend", index.BackendName)
		}
	default:
		return fmt.Errorf("backend must be one of %s, %s, %s, got: %q",
			reflective.BackendName, index.BackendName, pool.BackendName, c.Backend)
	}
	if c.Pool.CacheSize <= 0 {
		return fmt.Errorf("pool.cache_size must be positive, got: %d", c.Pool.CacheSize)
	}
	return nil
}

// NewBackend builds the backend named by c.Backend. The index backend
// loads c.Index.Dir.
func (c *Config) NewBackend() (backend.Backend, error) {
	switch c.Backend {
	case "", reflective.BackendName:
		return reflective.New(), nil
	case index.BackendName:
		ix, err := index.Load(c.Index.Dir)
		if err != nil {
			return nil, err
		}
		return index.New(ix), nil
	case pool.BackendName:
		return pool.New(c.Pool.CacheSize)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Options returns context options carrying the configured backend
// instance and implementor tracking.
func (c *Config) Options(log *zap.Logger) (model.Options, error) {
	b, err := c.NewBackend()
	if err != nil {
		return model.Options{}, err
	}
	return model.Options{
		Properties: map[string]any{
			model.PropertyBackend:           b,
			model.PropertyTrackImplementors: c.TrackImplementors,
		},
		Logger: log,
	}, nil
}
