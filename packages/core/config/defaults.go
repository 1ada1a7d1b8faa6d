package config

const (
	DefaultTimeoutMs      = 30000
	DefaultMaxRedirects   = 10
	DefaultDrainTimeoutMs = 30000
	DefaultOutput         = "console"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeoutMs,
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     BoolPtr(true),
		NullRemoves:     BoolPtr(true),
		Bail:            BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
		Output:          DefaultOutput,
		DrainTimeout:    DefaultDrainTimeoutMs,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == "" &&
		c.Timeout == d.Timeout &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == "" &&
		c.RateLimit == 0 &&
		len(c.Headers) == 0 &&
		c.Fixtures == "" &&
		c.EnvFile == "" &&
		c.GetNullRemoves() == d.GetNullRemoves() &&
		c.GetBail() == d.GetBail() &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor() &&
		c.Output == d.Output &&
		c.OutputFile == "" &&
		c.DrainTimeout == d.DrainTimeout &&
		len(c.Environments) == 0
}
