package ui

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mark-c-hall/posterpalette/internal/browser"
)

//go:embed config.example.toml
var exampleConf []byte

// Config is the terminal client configuration, read from TOML.
type Config struct {
	ProxyURL string        `toml:"proxy_url"`
	Timeout  string        `toml:"timeout"`
	Filters  FiltersConfig `toml:"filters"`
}

type FiltersConfig struct {
	Genre     string `toml:"genre"`
	StartYear int    `toml:"start_year"`
	EndYear   int    `toml:"end_year"`
}

// LoadConfig reads and parses a TOML configuration file. Keys missing from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := config.RequestTimeout(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns the embedded example configuration.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile writes the example configuration to path. It refuses to
// overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

func (c *Config) InitialFilters() browser.Filters {
	return browser.Filters{
		GenreID:   c.Filters.Genre,
		StartYear: c.Filters.StartYear,
		EndYear:   c.Filters.EndYear,
	}
}
