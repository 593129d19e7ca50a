// Package config handles loading and persisting user configuration
// for scribe. Configuration is stored in ~/.scribe/config.toml and can be
// overridden with SCRIBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const (
	dirName   = ".scribe"
	fileName  = "config.toml"
	envPrefix = "SCRIBE"

	DefaultAPIURL           = "http://localhost:8000"
	DefaultRequestTimeout   = 60 * time.Second
	DefaultRefreshInterval  = time.Second
	DefaultProgressStep     = 10
	DefaultProgressInterval = 200 * time.Millisecond
	DefaultProgressCeiling  = 90
	DefaultLogLevel         = "warn"
)

// Config holds the user's configuration.
type Config struct {
	APIURL           string        `toml:"api_url" mapstructure:"api_url"`
	RequestTimeout   time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	RefreshInterval  time.Duration `toml:"refresh_interval" mapstructure:"refresh_interval"` // minimum gap between conversation list refreshes
	ProgressStep     int           `toml:"progress_step" mapstructure:"progress_step"`
	ProgressInterval time.Duration `toml:"progress_interval" mapstructure:"progress_interval"`
	ProgressCeiling  int           `toml:"progress_ceiling" mapstructure:"progress_ceiling"`
	LogLevel         string        `toml:"log_level" mapstructure:"log_level"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		APIURL:           DefaultAPIURL,
		RequestTimeout:   DefaultRequestTimeout,
		RefreshInterval:  DefaultRefreshInterval,
		ProgressStep:     DefaultProgressStep,
		ProgressInterval: DefaultProgressInterval,
		ProgressCeiling:  DefaultProgressCeiling,
		LogLevel:         DefaultLogLevel,
	}
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads the configuration from the default file and environment.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the configuration from path and SCRIBE_* environment
// variables. A missing file is not an error; defaults apply.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("api_url", def.APIURL)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("refresh_interval", def.RefreshInterval)
	v.SetDefault("progress_step", def.ProgressStep)
	v.SetDefault("progress_interval", def.ProgressInterval)
	v.SetDefault("progress_ceiling", def.ProgressCeiling)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the client unusable.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api_url must not be empty")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url %q must start with http:// or https://", c.APIURL)
	}
	if c.ProgressStep <= 0 {
		return fmt.Errorf("progress_step must be positive, got %d", c.ProgressStep)
	}
	if c.ProgressCeiling <= 0 || c.ProgressCeiling >= 100 {
		return fmt.Errorf("progress_ceiling must be between 1 and 99, got %d", c.ProgressCeiling)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %s", c.ProgressInterval)
	}
	return nil
}

// Save writes cfg to path as TOML, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SetAPIURL saves the generation service URL to the config file at path.
func SetAPIURL(path, url string) error {
	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = Default()
	}
	cfg.APIURL = strings.TrimRight(url, "/")
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Save(cfg, path)
}
