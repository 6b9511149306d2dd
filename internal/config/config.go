// Package config loads and saves the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

const (
	configDirName  = ".graphmirror"
	configFileName = "config.toml"
)

// Config is the on-disk configuration.
type Config struct {
	Account   Account   `toml:"account"`
	Sync      Sync      `toml:"sync"`
	RateLimit RateLimit `toml:"rate_limit"`
}

// Account identifies the application registration and signed-in profile.
type Account struct {
	// ProfileID is a locally generated identifier for this profile.
	ProfileID string `toml:"profile_id"`
	// ClientID is the Azure application (client) ID.
	ClientID string `toml:"client_id"`
	// ClientSecret is set only for confidential app registrations.
	ClientSecret string `toml:"client_secret,omitempty"`
	// Tenant is the directory tenant; "common" allows any account.
	Tenant string `toml:"tenant"`
	// Email is filled in after login from the Graph profile.
	Email string `toml:"email,omitempty"`
}

// Sync controls reconciliation behaviour.
type Sync struct {
	// PageSize is the $top hint for delta requests (max 1000).
	PageSize int `toml:"page_size"`
	// Mail, Contacts, and Calendar toggle syncing of each kind.
	Mail     bool `toml:"mail"`
	Contacts bool `toml:"contacts"`
	Calendar bool `toml:"calendar"`
}

// RateLimit overrides the transport rate limiter. Zero values keep the
// built-in conservative defaults.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int     `toml:"burst_size"`
}

// Default returns a configuration with sensible defaults and a fresh
// profile id.
func Default() *Config {
	return &Config{
		Account: Account{
			ProfileID: uuid.NewString(),
			Tenant:    "common",
		},
		Sync: Sync{
			PageSize: 100,
			Mail:     true,
			Contacts: true,
			Calendar: true,
		},
	}
}

// Dir returns the configuration/data directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalise()
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields a sync run depends on.
func (c *Config) Validate() error {
	if c.Account.ClientID == "" {
		return errors.New("config: account.client_id is required, run login first")
	}
	return nil
}

func (c *Config) normalise() {
	if c.Account.ProfileID == "" {
		c.Account.ProfileID = uuid.NewString()
	}
	if c.Account.Tenant == "" {
		c.Account.Tenant = "common"
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 100
	}
	if c.Sync.PageSize > 1000 {
		c.Sync.PageSize = 1000
	}
}
