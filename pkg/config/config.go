// Package config loads the optional home configuration file.
//
// `<home>/config.toml` tunes how the engine reaches the outside world: a
// registry mirror, offline pinning, the response-cache TTL, and an
// optional shared Redis cache. A missing file yields the defaults; a
// malformed file is an error (silently ignoring typos hides mirrors).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/registry"
)

// FileName is the configuration file name inside the home directory.
const FileName = "config.toml"

// HomeEnvVar overrides the default home directory location.
const HomeEnvVar = "GELM_HOME"

// DefaultCacheTTL is how long registry responses stay fresh when the
// config does not say otherwise.
const DefaultCacheTTL = 24 * time.Hour

// Config is the decoded configuration with defaults applied.
type Config struct {
	// Registry is the package website base URL.
	Registry string `toml:"registry"`

	// Offline pins the engine to the local package cache; no network
	// requests are made at all.
	Offline bool `toml:"offline"`

	// CacheTTLHours is the response-cache time-to-live. Zero means the
	// default; negative disables expiry.
	CacheTTLHours int `toml:"cache-ttl-hours"`

	// RedisAddr selects the shared Redis response cache ("host:port").
	// Empty means the file-based cache.
	RedisAddr string `toml:"redis"`
}

// CacheTTL converts the configured hours into a duration.
func (c *Config) CacheTTL() time.Duration {
	switch {
	case c.CacheTTLHours == 0:
		return DefaultCacheTTL
	case c.CacheTTLHours < 0:
		return 0
	default:
		return time.Duration(c.CacheTTLHours) * time.Hour
	}
}

// Home resolves the engine home directory: $GELM_HOME if set, otherwise
// `~/.gelm`.
func Home() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, ".gelm"), nil
}

// Load reads `<home>/config.toml`. A missing file returns the defaults.
func Load(fs afero.Fs, home string) (*Config, error) {
	cfg := &Config{Registry: registry.DefaultBase}

	data, err := afero.ReadFile(fs, filepath.Join(home, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Registry == "" {
		cfg.Registry = registry.DefaultBase
	}
	return cfg, nil
}
