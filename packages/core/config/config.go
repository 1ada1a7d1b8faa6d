package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the hitchain configuration
type Config struct {
	BaseURL         string            `json:"baseUrl,omitempty"`
	Timeout         int               `json:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `json:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty"` // requests per second, 0 = unlimited
	Headers         map[string]string `json:"headers,omitempty"`   // Default headers for all requests
	Fixtures        string            `json:"fixtures,omitempty"`  // Fixture catalog directory
	EnvFile         string            `json:"envFile,omitempty"`   // dotenv file for ${$NAME} lookups
	NullRemoves     *bool             `json:"nullRemoves,omitempty"`
	Bail            *bool             `json:"bail,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty"`
	Output          string            `json:"output,omitempty"`       // console, json or junit
	OutputFile      string            `json:"outputFile,omitempty"`   // write the report here instead of stdout
	DrainTimeout    int               `json:"drainTimeout,omitempty"` // milliseconds

	DefaultEnvironment string                  `json:"defaultEnvironment,omitempty"`
	Environments       map[string]*Environment `json:"environments,omitempty"`
}

// Environment overrides the base URL and seeds variables for one target.
type Environment struct {
	BaseURL   string            `json:"baseUrl,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Variables map[string]any    `json:"variables,omitempty"`
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNullRemoves returns the null override policy, defaulting to true
func (c *Config) GetNullRemoves() bool {
	return getBool(c.NullRemoves, true)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) DrainTimeoutDuration() time.Duration {
	return time.Duration(c.DrainTimeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitchain.json",
	"hitchain.config.json",
	".hitchainrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if config.EnvFile != "" && !filepath.IsAbs(config.EnvFile) {
		config.EnvFile = filepath.Join(filepath.Dir(path), config.EnvFile)
	}
	if config.Fixtures != "" && !filepath.IsAbs(config.Fixtures) {
		config.Fixtures = filepath.Join(filepath.Dir(path), config.Fixtures)
	}

	return config, config.Validate()
}

// Validate checks values that would otherwise fail later at run time.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative")
	}
	switch c.Output {
	case "", "console", "json", "junit":
	default:
		return fmt.Errorf("unknown output %q (want console, json or junit)", c.Output)
	}
	return nil
}

// Environment returns the named environment. An empty name selects the
// default environment; it is not an error when none is configured.
func (c *Config) Environment(name string) (*Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
		if name == "" {
			return &Environment{}, nil
		}
		if _, ok := c.Environments[name]; !ok {
			return &Environment{}, nil
		}
	}
	env, ok := c.Environments[name]
	if !ok || env == nil {
		return nil, fmt.Errorf("environment %q is not defined", name)
	}
	return env, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Fixtures != "" {
		result.Fixtures = other.Fixtures
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.DrainTimeout > 0 {
		result.DrainTimeout = other.DrainTimeout
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NullRemoves != nil {
		result.NullRemoves = other.NullRemoves
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]*Environment, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
