// Package config loads the settings of the arbor command from a YAML file and
// ARBOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the complete command configuration.
type Config struct {
	Graph      string           `mapstructure:"graph"`
	Format     string           `mapstructure:"format"` // xml or yaml, empty to infer from the extension
	Strict     bool             `mapstructure:"strict"`
	Operations string           `mapstructure:"operations"` // Path to the operation command registry
	LogLevel   string           `mapstructure:"log_level"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RedisConfig enables event publishing and distributed locking when Addr is set.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Channel     string        `mapstructure:"channel"`
	StatePrefix string        `mapstructure:"state_prefix"` // Empty disables the state mirror
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type DispatcherConfig struct {
	Buffer int `mapstructure:"buffer"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: ":8080"},
		Metrics:  MetricsConfig{Enabled: true},
		Redis: RedisConfig{
			Channel: "arbor:events",
			LockTTL: 30 * time.Second,
		},
		Dispatcher: DispatcherConfig{Buffer: 64},
	}
}

// envKeys maps environment variables to dotted configuration keys.
var envKeys = map[string]string{
	"ARBOR_GRAPH":              "graph",
	"ARBOR_FORMAT":             "format",
	"ARBOR_STRICT":             "strict",
	"ARBOR_OPERATIONS":         "operations",
	"ARBOR_LOG_LEVEL":          "log_level",
	"ARBOR_HTTP_ADDR":          "http.addr",
	"ARBOR_METRICS_ENABLED":    "metrics.enabled",
	"ARBOR_REDIS_ADDR":         "redis.addr",
	"ARBOR_REDIS_CHANNEL":      "redis.channel",
	"ARBOR_REDIS_STATE_PREFIX": "redis.state_prefix",
	"ARBOR_REDIS_LOCK_TTL":     "redis.lock_ttl",
	"ARBOR_DISPATCHER_BUFFER":  "dispatcher.buffer",
}

// Load reads path (if not empty) over the defaults, then applies the environment.
// Environment values win over the file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envKeys {
		if v, ok := lookup(env); ok {
			set(raw, strings.Split(key, "."), v)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.validate()
}

func set(m map[string]any, keys []string, v string) {
	if len(keys) == 1 {
		m[keys[0]] = v
		return
	}
	child, ok := m[keys[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[keys[0]] = child
	}
	set(child, keys[1:], v)
}

func (c Config) validate() error {
	switch c.Format {
	case "", "xml", "yaml":
	default:
		return fmt.Errorf("invalid config: unknown graph format %q", c.Format)
	}
	if c.Dispatcher.Buffer < 0 {
		return fmt.Errorf("invalid config: dispatcher.buffer must not be negative")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("invalid config: redis.lock_ttl must be positive")
	}
	return nil
}
