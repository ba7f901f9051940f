package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfig, EnvUser, EnvPass, EnvPass + "_FILE", EnvBaseURL, EnvCredentials,
		EnvLogLevel, EnvLogFormat, EnvTimeout, EnvCacheZoneIDs, EnvPropagation,
		EnvPropagationTimeout, EnvMetricsTextfile,
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != DefaultLogLevel || cfg.LogFormat != DefaultLogFormat {
		t.Errorf("logging = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MCHost.BaseURL != "https://my.mchost.ru" {
		t.Errorf("BaseURL = %q", cfg.MCHost.BaseURL)
	}
	if cfg.MCHost.HasCredentials() {
		t.Error("no credentials expected")
	}
	if !cfg.Propagation.Enabled || cfg.Propagation.Timeout != DefaultPropagationTimeout {
		t.Errorf("Propagation = %+v", cfg.Propagation)
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yml", `
logging:
  level: debug
  format: json
mchost:
  user: file@example.com
  pass: file-pass
  timeout: 10s
`)

	t.Setenv(EnvUser, "env@example.com")
	t.Setenv(EnvTimeout, "20s")
	t.Setenv(EnvLogFormat, "TEXT")

	cfg, err := Load(Overrides{ConfigPath: path, LogLevel: "warn"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MCHost.User != "env@example.com" {
		t.Errorf("User = %q, env should override file", cfg.MCHost.User)
	}
	if cfg.MCHost.Pass != "file-pass" {
		t.Errorf("Pass = %q, file value should survive", cfg.MCHost.Pass)
	}
	if cfg.MCHost.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", cfg.MCHost.Timeout)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, flag should override file", cfg.LogLevel)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", "metrics:\n  textfile: /tmp/mchostdns.prom\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MetricsTextfile != "/tmp/mchostdns.prom" {
		t.Errorf("MetricsTextfile = %q", cfg.MetricsTextfile)
	}
}

func TestLoad_PassFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPass, "direct")
	t.Setenv(EnvPass+"_FILE", writeFile(t, "pass", "from-file\n"))

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MCHost.Pass != "from-file" {
		t.Errorf("Pass = %q, want from-file", cfg.MCHost.Pass)
	}
}

func TestLoad_CredentialsFillMissing(t *testing.T) {
	clearEnv(t)
	creds := writeFile(t, "mchost.ini", "dns_mchost_user = ini@example.com\ndns_mchost_pass = ini-pass\n")
	t.Setenv(EnvUser, "env@example.com")

	cfg, err := Load(Overrides{CredentialsPath: creds})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MCHost.User != "env@example.com" {
		t.Errorf("User = %q, credentials file must not override", cfg.MCHost.User)
	}
	if cfg.MCHost.Pass != "ini-pass" {
		t.Errorf("Pass = %q, want value from credentials file", cfg.MCHost.Pass)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("Warnings = %v", cfg.Warnings)
	}
}

func TestLoad_CredentialsSkippedWhenComplete(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUser, "env@example.com")
	t.Setenv(EnvPass, "env-pass")
	t.Setenv(EnvCredentials, "/nonexistent/mchost.ini")

	if _, err := Load(Overrides{}); err != nil {
		t.Fatalf("Load() error = %v, credentials file should not be read", err)
	}
}

func TestLoad_MissingCredentialsFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(Overrides{CredentialsPath: "/nonexistent/mchost.ini"})
	if !provider.IsConfig(err) {
		t.Fatalf("Load() error = %v, want config error", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "verbose")
	t.Setenv(EnvTimeout, "later")
	t.Setenv(EnvBaseURL, "ftp://panel.example.com")

	_, err := Load(Overrides{LogFormat: "xml"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load() error = %v, want *ValidationError", err)
	}
	if len(verr.Errors) != 4 {
		t.Errorf("Errors = %v, want 4 entries", verr.Errors)
	}
	if !errors.Is(err, provider.ErrConfig) {
		t.Error("ValidationError should match provider.ErrConfig")
	}
}

func TestLoad_PropagationEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPropagation, "off")
	t.Setenv(EnvPropagationTimeout, "45s")
	t.Setenv(EnvCacheZoneIDs, "yes")

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Propagation.Enabled {
		t.Error("propagation should be disabled")
	}
	if cfg.Propagation.Timeout != 45*time.Second {
		t.Errorf("Propagation.Timeout = %v", cfg.Propagation.Timeout)
	}
	if !cfg.MCHost.CacheZoneIDs {
		t.Error("CacheZoneIDs should be enabled")
	}
}

func TestValidationError_Error(t *testing.T) {
	single := &ValidationError{Errors: []string{"bad"}}
	if got := single.Error(); got != "configuration error: bad" {
		t.Errorf("Error() = %q", got)
	}

	multi := &ValidationError{Errors: []string{"a", "b"}}
	if got := multi.Error(); got != "configuration errors:\n  - a\n  - b" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidate_Propagation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr int
	}{
		{"defaults", func(*Config) {}, 0},
		{"zero timeout", func(c *Config) { c.Propagation.Timeout = 0 }, 1},
		{"interval above timeout", func(c *Config) { c.Propagation.Interval = time.Hour }, 1},
		{"disabled skips checks", func(c *Config) {
			c.Propagation.Enabled = false
			c.Propagation.Timeout = 0
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if errs := cfg.validate(); len(errs) != tt.wantErr {
				t.Errorf("validate() = %v, want %d errors", errs, tt.wantErr)
			}
		})
	}
}
