package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the YAML configuration file structure.
// This mirrors the runtime Config but uses YAML-friendly types.
type FileConfig struct {
	Logging     *FileLoggingConfig     `yaml:"logging,omitempty"`
	MCHost      *FileMCHostConfig      `yaml:"mchost,omitempty"`
	Credentials string                 `yaml:"credentials,omitempty"` // certbot-style credentials file
	Propagation *FilePropagationConfig `yaml:"propagation,omitempty"`
	Metrics     *FileMetricsConfig     `yaml:"metrics,omitempty"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// FileMCHostConfig holds control panel settings.
type FileMCHostConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	User           string `yaml:"user,omitempty"`
	Pass           string `yaml:"pass,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"` // Go duration format (e.g., "30s")
	UserAgent      string `yaml:"user_agent,omitempty"`
	TLSSkipVerify  *bool  `yaml:"tls_skip_verify,omitempty"`
	CacheZoneIDs   *bool  `yaml:"cache_zone_ids,omitempty"` // Pointer to distinguish unset from false
	Reauthenticate *bool  `yaml:"reauthenticate,omitempty"`
}

// FilePropagationConfig holds the propagation wait settings.
type FilePropagationConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
	Interval    string   `yaml:"interval,omitempty"`
	Nameservers []string `yaml:"nameservers,omitempty"`
}

// FileMetricsConfig holds metrics export settings.
type FileMetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in all string
// fields of the config structure.
func (c *FileConfig) interpolateEnvVars() {
	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if m := c.MCHost; m != nil {
		m.BaseURL = InterpolateEnvVars(m.BaseURL)
		m.User = InterpolateEnvVars(m.User)
		m.Pass = InterpolateEnvVars(m.Pass)
		m.Timeout = InterpolateEnvVars(m.Timeout)
		m.UserAgent = InterpolateEnvVars(m.UserAgent)
	}

	c.Credentials = InterpolateEnvVars(c.Credentials)

	if p := c.Propagation; p != nil {
		p.Timeout = InterpolateEnvVars(p.Timeout)
		p.Interval = InterpolateEnvVars(p.Interval)
		for i := range p.Nameservers {
			p.Nameservers[i] = InterpolateEnvVars(p.Nameservers[i])
		}
	}

	if c.Metrics != nil {
		c.Metrics.Textfile = InterpolateEnvVars(c.Metrics.Textfile)
	}
}

// LoadFile reads and parses a YAML configuration file.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// apply copies every value set in the file onto cfg.
func (c *FileConfig) apply(cfg *Config) []string {
	var errs []string

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = c.Logging.Level
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = c.Logging.Format
		}
	}

	if m := c.MCHost; m != nil {
		if m.BaseURL != "" {
			cfg.MCHost.BaseURL = m.BaseURL
		}
		if m.User != "" {
			cfg.MCHost.User = m.User
		}
		if m.Pass != "" {
			cfg.MCHost.Pass = m.Pass
		}
		if m.UserAgent != "" {
			cfg.MCHost.UserAgent = m.UserAgent
		}
		if m.Timeout != "" {
			if d, err := time.ParseDuration(m.Timeout); err == nil {
				cfg.MCHost.Timeout = d
			} else {
				errs = append(errs, fmt.Sprintf("mchost.timeout: invalid duration %q", m.Timeout))
			}
		}
		if m.TLSSkipVerify != nil {
			cfg.MCHost.TLSSkipVerify = *m.TLSSkipVerify
		}
		if m.CacheZoneIDs != nil {
			cfg.MCHost.CacheZoneIDs = *m.CacheZoneIDs
		}
		if m.Reauthenticate != nil {
			cfg.MCHost.Reauthenticate = *m.Reauthenticate
		}
	}

	if c.Credentials != "" {
		cfg.CredentialsPath = c.Credentials
	}

	if p := c.Propagation; p != nil {
		if p.Enabled != nil {
			cfg.Propagation.Enabled = *p.Enabled
		}
		if p.Timeout != "" {
			if d, err := time.ParseDuration(p.Timeout); err == nil {
				cfg.Propagation.Timeout = d
			} else {
				errs = append(errs, fmt.Sprintf("propagation.timeout: invalid duration %q", p.Timeout))
			}
		}
		if p.Interval != "" {
			if d, err := time.ParseDuration(p.Interval); err == nil {
				cfg.Propagation.Interval = d
			} else {
				errs = append(errs, fmt.Sprintf("propagation.interval: invalid duration %q", p.Interval))
			}
		}
		if len(p.Nameservers) > 0 {
			cfg.Propagation.Nameservers = append([]string(nil), p.Nameservers...)
		}
	}

	if c.Metrics != nil && c.Metrics.Textfile != "" {
		cfg.MetricsTextfile = c.Metrics.Textfile
	}

	return errs
}
