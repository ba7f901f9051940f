// Package config handles loading and validation of mchostdns configuration
// from a YAML file, environment variables, and a credentials file.
package config

import (
	"fmt"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/mchostdns/pkg/propagation"
	"gitlab.bluewillows.net/root/mchostdns/providers/mchost"
)

// Configuration defaults.
const (
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultPropagation         = true
	DefaultPropagationTimeout  = propagation.DefaultTimeout
	DefaultPropagationInterval = propagation.DefaultInterval
)

// Environment variables read by Load.
const (
	EnvConfig             = "MCHOST_CONFIG"
	EnvUser               = "MCHOST_USER"
	EnvPass               = "MCHOST_PASS"
	EnvBaseURL            = "MCHOST_BASE_URL"
	EnvCredentials        = "MCHOST_CREDENTIALS"
	EnvLogLevel           = "MCHOST_LOG_LEVEL"
	EnvLogFormat          = "MCHOST_LOG_FORMAT"
	EnvTimeout            = "MCHOST_TIMEOUT"
	EnvCacheZoneIDs       = "MCHOST_CACHE_ZONE_IDS"
	EnvPropagation        = "MCHOST_PROPAGATION"
	EnvPropagationTimeout = "MCHOST_PROPAGATION_TIMEOUT"
	EnvMetricsTextfile    = "MCHOST_METRICS_TEXTFILE"
)

// Config holds the complete runtime configuration.
type Config struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// MCHost is passed to the provider as is.
	MCHost *mchost.Config

	// CredentialsPath is the credentials file that filled User/Pass, if any.
	CredentialsPath string

	Propagation PropagationConfig

	// MetricsTextfile is written after each command when set.
	MetricsTextfile string

	// Warnings are non-fatal findings collected while loading, logged by
	// the caller once its logger exists.
	Warnings []string
}

// PropagationConfig controls the wait after a record is placed.
type PropagationConfig struct {
	Enabled     bool
	Timeout     time.Duration
	Interval    time.Duration
	Nameservers []string
}

// Overrides carries command-line values. Empty fields are ignored.
type Overrides struct {
	ConfigPath      string
	CredentialsPath string
	LogLevel        string
	LogFormat       string
	MetricsTextfile string
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		MCHost:    mchost.DefaultConfig(),
		Propagation: PropagationConfig{
			Enabled:  DefaultPropagation,
			Timeout:  DefaultPropagationTimeout,
			Interval: DefaultPropagationInterval,
		},
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the
// YAML file, environment variables, command-line overrides. Credentials from
// the credentials file only fill values still empty after that.
//
// Missing credentials are not an error here; the provider reports them on
// first use.
func Load(ov Overrides) (*Config, error) {
	cfg := Default()
	var errs []string

	path := ov.ConfigPath
	if path == "" {
		path = getEnv(EnvConfig)
	}
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		errs = append(errs, file.apply(cfg)...)
	}

	errs = append(errs, applyEnv(cfg)...)
	ov.apply(cfg)

	if cfg.CredentialsPath != "" && (cfg.MCHost.User == "" || cfg.MCHost.Pass == "") {
		creds, warnings, err := LoadCredentials(cfg.CredentialsPath)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			cfg.Warnings = append(cfg.Warnings, warnings...)
			if cfg.MCHost.User == "" {
				cfg.MCHost.User = creds.User
			}
			if cfg.MCHost.Pass == "" {
				cfg.MCHost.Pass = creds.Pass
			}
		}
	}

	errs = append(errs, cfg.validate()...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}

func (ov Overrides) apply(cfg *Config) {
	if ov.CredentialsPath != "" {
		cfg.CredentialsPath = ov.CredentialsPath
	}
	if ov.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(ov.LogLevel)
	}
	if ov.LogFormat != "" {
		cfg.LogFormat = strings.ToLower(ov.LogFormat)
	}
	if ov.MetricsTextfile != "" {
		cfg.MetricsTextfile = ov.MetricsTextfile
	}
}

// applyEnv overrides cfg with MCHOST_* environment variables.
func applyEnv(cfg *Config) []string {
	var errs []string

	if v := getEnv(EnvUser); v != "" {
		cfg.MCHost.User = v
	}
	if v := getEnvOrFile(EnvPass, EnvPass+"_FILE"); v != "" {
		cfg.MCHost.Pass = v
	}
	if v := getEnv(EnvBaseURL); v != "" {
		cfg.MCHost.BaseURL = v
	}
	if v := getEnv(EnvCredentials); v != "" {
		cfg.CredentialsPath = v
	}
	if v := getEnv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getEnv(EnvLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getEnv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", EnvTimeout, v))
		} else {
			cfg.MCHost.Timeout = d
		}
	}
	if v := getEnv(EnvCacheZoneIDs); v != "" {
		cfg.MCHost.CacheZoneIDs = parseBool(v, cfg.MCHost.CacheZoneIDs)
	}
	if v := getEnv(EnvPropagation); v != "" {
		cfg.Propagation.Enabled = parseBool(v, cfg.Propagation.Enabled)
	}
	if v := getEnv(EnvPropagationTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", EnvPropagationTimeout, v))
		} else {
			cfg.Propagation.Timeout = d
		}
	}
	if v := getEnv(EnvMetricsTextfile); v != "" {
		cfg.MetricsTextfile = v
	}

	return errs
}
