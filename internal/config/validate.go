package config

import (
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Unwrap lets errors.Is match provider.ErrConfig.
func (e *ValidationError) Unwrap() error {
	return provider.ErrConfig
}

// validate performs cross-field validation on the merged configuration.
func (c *Config) validate() []string {
	var errs []string

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level %q is invalid (must be debug, info, warn, or error)", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log format %q is invalid (must be json or text)", c.LogFormat))
	}

	if err := c.MCHost.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Propagation.Enabled {
		if c.Propagation.Timeout <= 0 {
			errs = append(errs, "propagation.timeout must be positive")
		}
		if c.Propagation.Interval <= 0 {
			errs = append(errs, "propagation.interval must be positive")
		}
		if c.Propagation.Interval > c.Propagation.Timeout && c.Propagation.Timeout > 0 {
			errs = append(errs, "propagation.interval must not exceed propagation.timeout")
		}
	}

	return errs
}
