// Package config loads playbook settings from a YAML file, PLAYBOOK_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLAYBOOK_REMOTE_BASE_URL.
const EnvPrefix = "PLAYBOOK"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds the configuration of the playbook binaries.
type Config struct {
	Remote struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
		// Fixture points at a YAML file served by the in-memory authority instead of BaseURL.
		Fixture string `mapstructure:"fixture"`
	} `mapstructure:"remote"`
	Store struct {
		Backend       string   `mapstructure:"backend"`
		Path          string   `mapstructure:"path"`
		EncryptionKey string   `mapstructure:"encryption_key"`
		FallbackKeys  []string `mapstructure:"fallback_keys"`
		MaskPatterns  []string `mapstructure:"mask_patterns"`
	} `mapstructure:"store"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		Prefix   string        `mapstructure:"prefix"`
		TTL      time.Duration `mapstructure:"ttl"`
		Lock     bool          `mapstructure:"lock"`
	} `mapstructure:"redis"`
	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	HTTP struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"http"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// FlagAliases maps short command-line flag names onto configuration keys.
var FlagAliases = map[string]string{
	"url":        "remote.base_url",
	"timeout":    "remote.timeout",
	"fixture":    "remote.fixture",
	"store":      "store.backend",
	"store-path": "store.path",
	"redis-addr": "redis.addr",
	"log-level":  "log.level",
	"log-json":   "log.json",
	"port":       "http.port",
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", "http://localhost:5000")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.fixture", "")
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", ".playbook/progress")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("store.mask_patterns", []string{})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "playbook:progress:")
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("redis.lock", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("http.port", "8080")
	v.SetDefault("metrics.enabled", true)
}

// Load reads configFile (optional; "playbook.yaml" in the working directory or
// ./config when empty), the environment and flags. Flags are bound by key name,
// e.g. a flag named "remote.base_url", or through FlagAliases.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("playbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := f.Name
			if alias, ok := FlagAliases[f.Name]; ok {
				key = alias
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.Remote.BaseURL == "" && c.Remote.Fixture == "" {
		return errors.New("remote.base_url or remote.fixture is required")
	}
	if c.Remote.Timeout < 0 {
		return errors.New("remote.timeout must not be negative")
	}
	return nil
}
