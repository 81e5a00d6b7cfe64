// Package config loads the YAML run configuration of the histcache CLI.
// Missing sections keep the defaults of internal/constants and of the
// analysis package, so an empty file describes a valid single-shard run.
package config

import (
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/analysis"
	"github.com/hyp3rd/histcache/pkg/backend"
	"github.com/hyp3rd/histcache/pkg/catalog"
	"github.com/hyp3rd/histcache/pkg/export"
	"github.com/hyp3rd/histcache/pkg/transport"
)

// Config is the run configuration.
type Config struct {
	Run        RunConfig          `yaml:"run"`
	Catalog    string             `yaml:"catalog"`
	EventCuts  analysis.EventCuts `yaml:"eventCuts"`
	TrackCuts  analysis.TrackCuts `yaml:"trackCuts"`
	Backend    backend.Config     `yaml:"backend"`
	NATS       NATSConfig         `yaml:"nats"`
	ClickHouse export.Config      `yaml:"clickhouse"`
	Management ManagementConfig   `yaml:"management"`
	Log        LogConfig          `yaml:"log"`
}

// RunConfig sizes the shard runner.
type RunConfig struct {
	// ID prefixes the shard collection ids. Empty picks a random id per run.
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Shards int    `yaml:"shards"`
	Buffer int    `yaml:"buffer"`
}

// NATSConfig enables snapshot transport when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// Enabled reports whether a NATS server is configured.
func (n NATSConfig) Enabled() bool { return strings.TrimSpace(n.URL) != "" }

// ManagementConfig configures the management HTTP server.
type ManagementConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// Token, when set, must be sent in the X-Token header.
	Token string `yaml:"token"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Name:   constants.DefaultCollectionName,
			Shards: constants.DefaultShards,
			Buffer: constants.DefaultEventBuffer,
		},
		EventCuts: analysis.DefaultEventCuts(),
		TrackCuts: analysis.DefaultTrackCuts(),
		Backend: backend.Config{
			Type:       constants.InMemoryBackend,
			Serializer: constants.DefaultSerializer,
		},
		NATS:       NATSConfig{Subject: transport.DefaultSubject},
		ClickHouse: export.Config{Table: export.DefaultTable},
		Management: ManagementConfig{Addr: constants.DefaultManagementAddr},
		Log:        LogConfig{Level: "info", Encoding: "console"},
	}
}

// Load reads and validates the configuration file at path. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to unmarshal config YAML")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values the runner and the backends cannot recover from.
func (c *Config) Validate() error {
	if c.Run.Shards < 1 {
		return ewrap.Wrapf(sentinel.ErrParamCannotBeEmpty, "run.shards must be positive, got %d", c.Run.Shards)
	}

	if c.Run.Buffer < 0 {
		return ewrap.Newf("run.buffer must not be negative, got %d", c.Run.Buffer)
	}

	if c.EventCuts.CentralityMin > c.EventCuts.CentralityMax {
		return ewrap.Newf("eventCuts: centrality range [%g, %g] is empty", c.EventCuts.CentralityMin, c.EventCuts.CentralityMax)
	}

	if c.TrackCuts.EtaMin > c.TrackCuts.EtaMax {
		return ewrap.Newf("trackCuts: eta range [%g, %g] is empty", c.TrackCuts.EtaMin, c.TrackCuts.EtaMax)
	}

	if c.Backend.Type == constants.FileBackend && strings.TrimSpace(c.Backend.Dir) == "" {
		return ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "backend.dir is required by the file backend")
	}

	_, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return ewrap.Wrapf(err, "log.level")
	}

	return nil
}

// LoadCatalog returns the configured catalog, or the default one when no
// catalog file is set.
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog == "" {
		return catalog.Default(), nil
	}

	return catalog.Load(c.Catalog)
}

// Logger builds the zap logger described by the log section.
func (l LogConfig) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, ewrap.Wrap(err, "log.level")
	}

	zc.Level = zap.NewAtomicLevelAt(level)

	if l.Encoding != "" {
		zc.Encoding = l.Encoding
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, ewrap.Wrap(err, "build logger")
	}

	return logger, nil
}
