package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Credentials file keys. The prefixed form follows the certbot plugin
// convention; the bare form is accepted as well.
const (
	credentialUserKey = "dns_mchost_user"
	credentialPassKey = "dns_mchost_pass"
)

// Credentials holds the control panel login.
type Credentials struct {
	User string
	Pass string
}

// LoadCredentials reads a credentials file. The format follows the
// extension: .toml is TOML, .yaml and .yml are YAML, anything else is INI.
//
// A file readable by group or others is accepted; the returned warnings
// say so.
func LoadCredentials(path string) (Credentials, []string, error) {
	var warnings []string

	info, err := os.Stat(path)
	if err != nil {
		return Credentials{}, nil, fmt.Errorf("credentials file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		warnings = append(warnings, fmt.Sprintf(
			"credentials file %s is accessible by other users (mode %04o); restrict it with chmod 600", path, perm))
	}

	var values map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		values, err = readTOMLCredentials(path)
	case ".yaml", ".yml":
		values, err = readYAMLCredentials(path)
	default:
		values, err = readINICredentials(path)
	}
	if err != nil {
		return Credentials{}, nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}

	creds := Credentials{
		User: firstNonEmpty(values[credentialUserKey], values["user"]),
		Pass: firstNonEmpty(values[credentialPassKey], values["pass"]),
	}

	return creds, warnings, nil
}

func readINICredentials(path string) (map[string]string, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		values[strings.ToLower(key.Name())] = strings.TrimSpace(key.String())
	}
	return values, nil
}

func readTOMLCredentials(path string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}
	return stringValues(raw), nil
}

func readYAMLCredentials(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return stringValues(raw), nil
}

// stringValues keeps the top-level string entries of a decoded document.
func stringValues(raw map[string]any) map[string]string {
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			values[strings.ToLower(k)] = strings.TrimSpace(s)
		}
	}
	return values
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
