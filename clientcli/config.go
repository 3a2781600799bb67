package clientcli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the default gateway endpoint URL.
const DefaultEndpoint = "http://localhost:8080"

// Environment variables read by ConfigFromEnv and friends.
const (
	EnvEndpoint        = "ASSETCTL_ENDPOINT"
	EnvDownloadTimeout = "ASSETCTL_DOWNLOAD_TIMEOUT"
	EnvProfile         = "ASSETCTL_PROFILE"
	EnvConfig          = "ASSETCTL_CONFIG"
)

// Profile holds configuration for a single gateway profile.
type Profile struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	// DownloadTimeout is the URL validity in seconds requested on download.
	// Zero leaves the choice to the gateway.
	DownloadTimeout int  `yaml:"download_timeout,omitempty"`
	Default         bool `yaml:"default,omitempty"`
}

// ConfigFile holds the full config file structure with multiple profiles.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) indexOf(name string) int {
	return slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Name == name })
}

// GetProfile returns the named profile, or the default profile when name is
// empty.
func (c *ConfigFile) GetProfile(name string) (*Profile, error) {
	if name == "" {
		return c.GetDefaultProfile()
	}
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	i := c.indexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

// GetDefaultProfile returns the profile marked default, falling back to the
// first one.
func (c *ConfigFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if i := slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Default }); i >= 0 {
		return &c.Profiles[i], nil
	}
	return &c.Profiles[0], nil
}

// AddProfile appends p. A profile of the same name must not exist yet.
func (c *ConfigFile) AddProfile(p Profile) error {
	if c.indexOf(p.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// UpdateProfile replaces the profile named p.Name.
func (c *ConfigFile) UpdateProfile(p Profile) error {
	i := c.indexOf(p.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
	}
	c.Profiles[i] = p
	return nil
}

func (c *ConfigFile) RemoveProfile(name string) error {
	i := c.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.Profiles = slices.Delete(c.Profiles, i, i+1)
	return nil
}

// SetDefault marks name as the only default profile.
func (c *ConfigFile) SetDefault(name string) error {
	target := c.indexOf(name)
	if target < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	for i := range c.Profiles {
		c.Profiles[i].Default = i == target
	}
	return nil
}

// ProfileNames lists profile names in file order.
func (c *ConfigFile) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Save writes the config to the specified path.
// Creates the parent directory if it doesn't exist.
func (c *ConfigFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	// Create parent directory if needed
	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// LoadConfigFile loads the config file from the specified path.
func LoadConfigFile(path string) (*ConfigFile, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// DefaultConfigPath returns the default config file path (~/.assetgate/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".assetgate", "config.yaml")
}

// Config holds resolved client configuration for a single gateway.
// This is what the Client uses after profile resolution.
type Config struct {
	Endpoint        string
	DownloadTimeout int
}

// Validate checks that the endpoint is an absolute http(s) URL.
// Use WithDefaults() first to fill in a missing endpoint.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if c.DownloadTimeout < 0 {
		return fmt.Errorf("download timeout must not be negative: %d", c.DownloadTimeout)
	}
	return nil
}

// WithDefaults returns a copy of the config with default values applied.
// If Endpoint is empty, it defaults to DefaultEndpoint.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &cfg
}

// ConfigFromProfile creates a Config from a Profile.
func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{
		Endpoint:        p.Endpoint,
		DownloadTimeout: p.DownloadTimeout,
	}
}

// ConfigFromEnv loads config from environment variables. A malformed
// ASSETCTL_DOWNLOAD_TIMEOUT is ignored.
func ConfigFromEnv() *Config {
	cfg := &Config{Endpoint: os.Getenv(EnvEndpoint)}
	if raw := os.Getenv(EnvDownloadTimeout); raw != "" {
		if timeout, err := strconv.Atoi(raw); err == nil {
			cfg.DownloadTimeout = timeout
		}
	}
	return cfg
}

// ProfileFromEnv returns the profile name from ASSETCTL_PROFILE.
func ProfileFromEnv() string {
	return os.Getenv(EnvProfile)
}

// ConfigPathFromEnv returns the config file path from ASSETCTL_CONFIG.
func ConfigPathFromEnv() string {
	return os.Getenv(EnvConfig)
}

// MergeConfig merges multiple configs, with later configs taking precedence.
// Zero values in later configs do not override values in earlier configs.
func MergeConfig(configs ...*Config) *Config {
	result := &Config{}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		if cfg.Endpoint != "" {
			result.Endpoint = cfg.Endpoint
		}
		if cfg.DownloadTimeout != 0 {
			result.DownloadTimeout = cfg.DownloadTimeout
		}
	}
	return result
}
