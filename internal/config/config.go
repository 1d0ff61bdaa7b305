package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/gravitrone/portal-cli/internal/api"
)

// EnvPrefix prefixes environment overrides. A double underscore selects a
// nested key: PORTAL_REALTIME__MAX_ATTEMPTS -> realtime.max_attempts.
const EnvPrefix = "PORTAL_"

// SuggestConfig tunes reference suggestions.
type SuggestConfig struct {
	TTL       time.Duration `koanf:"ttl"`
	Limit     int           `koanf:"limit"`
	SeedLimit int           `koanf:"seed_limit"`
}

// RealtimeConfig tunes the live update channel.
type RealtimeConfig struct {
	Path        string        `koanf:"path"`
	Heartbeat   time.Duration `koanf:"heartbeat"`
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffMax  time.Duration `koanf:"backoff_max"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// Config holds CLI configuration stored at ~/.portal/config.
type Config struct {
	BaseURL  string         `koanf:"base_url"`
	APIKey   string         `koanf:"api_key"`
	Username string         `koanf:"username"`
	Theme    string         `koanf:"theme"`
	LogLevel string         `koanf:"log_level"`
	LogFile  string         `koanf:"log_file"`
	Suggest  SuggestConfig  `koanf:"suggest"`
	Realtime RealtimeConfig `koanf:"realtime"`

	// File is the config file the values were read from.
	File string `koanf:"-"`
}

// Path returns the config file path.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".portal", "config")
}

func defaults() map[string]any {
	return map[string]any{
		"base_url":              api.DefaultBaseURL,
		"theme":                 "dark",
		"log_level":             "info",
		"suggest.ttl":           60 * time.Second,
		"suggest.limit":         10,
		"suggest.seed_limit":    500,
		"realtime.path":         "/api/v1/ws",
		"realtime.heartbeat":    30 * time.Second,
		"realtime.backoff_base": time.Second,
		"realtime.backoff_max":  10 * time.Second,
		"realtime.max_attempts": 5,
	}
}

// Load reads the configuration. Precedence, highest first: changed flags,
// PORTAL_ environment variables, the config file, defaults. An empty path
// means Path(). The file may be absent when the api key comes from the
// environment or flags; if present it must not be readable by others.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, found, err := resolve(path, flags)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		if !found {
			return nil, fmt.Errorf("config not found: %w", os.ErrNotExist)
		}
		return nil, fmt.Errorf("config missing api_key")
	}
	return cfg, nil
}

// Resolve is Load without the api key requirement. Login uses it to pick up
// the server address before a key exists.
func Resolve(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, _, err := resolve(path, flags)
	return cfg, err
}

// resolve layers the sources and reports whether the config file exists.
func resolve(path string, flags *pflag.FlagSet) (*Config, bool, error) {
	if path == "" {
		path = Path()
	}
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, false, fmt.Errorf("load defaults: %w", err)
	}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if perm := info.Mode().Perm(); perm != 0600 {
			return nil, false, fmt.Errorf("config permissions too open: %04o (want 0600)", perm)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, false, fmt.Errorf("parse config: %w", err)
		}
	case !errors.Is(statErr, os.ErrNotExist):
		return nil, false, fmt.Errorf("stat config: %w", statErr)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, false, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, false, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, false, fmt.Errorf("decode config: %w", err)
	}
	if statErr == nil {
		cfg.File = path
	}
	return &cfg, statErr == nil, nil
}

// persisted is the part of Config that Save writes. Tuning sections are
// edited by hand and survive a save untouched.
type persisted struct {
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username,omitempty"`
	Theme    string `yaml:"theme,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`
}

// Save writes the config to path (Path() when empty) with secure
// permissions, merging into any keys already in the file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	doc := map[string]any{}
	if existing, err := os.ReadFile(path); err == nil {
		if err := yamlv3.Unmarshal(existing, &doc); err != nil {
			return fmt.Errorf("parse existing config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	fields, err := yamlv3.Marshal(persisted{
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		Username: c.Username,
		Theme:    c.Theme,
		LogLevel: c.LogLevel,
		LogFile:  c.LogFile,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var updates map[string]any
	if err := yamlv3.Unmarshal(fields, &updates); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	for key, value := range updates {
		doc[key] = value
	}

	data, err := yamlv3.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	c.File = path
	return nil
}
