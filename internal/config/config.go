package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultBaseURL     = "http://localhost:8080"
	defaultStoragePath = "storage.db"
	defaultLogLevel    = "info"
	defaultTimeout     = 30 * time.Second
)

// Config is read from a YAML file. JSON is valid YAML, so config.json works as well.
type Config struct {
	BaseURL     string   `yaml:"base_url"`
	StoragePath string   `yaml:"storage_path"`
	LogLevel    string   `yaml:"log_level"`
	Timeout     Duration `yaml:"timeout"`
}

// Duration accepts a duration string ("30s", "1m") or a whole number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var seconds int64
	if err := unmarshal(&seconds); err == nil {
		if seconds < 0 {
			return fmt.Errorf("invalid timeout %d: must not be negative", seconds)
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ReadConfig loads the file at path. A missing file is not an error and yields the defaults.
// SHREDDIT_BASE_URL and SHREDDIT_STORAGE override the file.
func ReadConfig(path string) (Config, error) {
	var config Config

	file, err := os.ReadFile(filepath.Clean(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("unable to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(file, &config); err != nil {
			return Config{}, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	if v := os.Getenv("SHREDDIT_BASE_URL"); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv("SHREDDIT_STORAGE"); v != "" {
		config.StoragePath = v
	}

	config.setDefaults()
	return config, nil
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.StoragePath == "" {
		c.StoragePath = defaultStoragePath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(defaultTimeout)
	}
}
