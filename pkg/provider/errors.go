package provider

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a provider matches exactly one of
// these through errors.Is.
var (
	// ErrAuth indicates login or session failure.
	ErrAuth = errors.New("authentication failed")

	// ErrDiscovery indicates an empty or malformed response while scraping
	// domains, zone ids or records.
	ErrDiscovery = errors.New("discovery failed")

	// ErrNotFound indicates the target domain is not owned by the account.
	ErrNotFound = errors.New("domain not found")

	// ErrCreate indicates the provider rejected a record creation.
	ErrCreate = errors.New("record creation failed")

	// ErrDelete indicates the provider rejected a record deletion.
	ErrDelete = errors.New("record deletion failed")

	// ErrConfig indicates missing or invalid configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrTransient indicates a timeout or connection failure that may
	// succeed on a later attempt.
	ErrTransient = errors.New("provider unavailable")
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Unwrap makes a ConfigError match ErrConfig.
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// ErrConfigMissing creates an error for a missing required configuration field.
func ErrConfigMissing(field string) error {
	return &ConfigError{
		Field:   field,
		Message: "required but not set",
	}
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Error wraps a failure with provider context and its kind.
type Error struct {
	Provider  string
	Operation string
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v: %v", e.Provider, e.Operation, e.Kind, e.Err)
}

// Unwrap returns both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an *Error. A nil cause is allowed.
func NewError(provider, operation string, kind, err error) error {
	return &Error{
		Provider:  provider,
		Operation: operation,
		Kind:      kind,
		Err:       err,
	}
}

// IsAuth returns true if the error indicates an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsDiscovery returns true if the error indicates a scraping or parsing failure.
func IsDiscovery(err error) bool {
	return errors.Is(err, ErrDiscovery)
}

// IsNotFound returns true if the domain is not owned by the account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfig returns true if the error indicates a configuration problem.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsRetriable reports whether a later attempt may succeed.
// Only timeouts and connection failures are retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTransient)
}
