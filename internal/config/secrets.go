package config

import (
	"os"
	"strings"
)

func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile returns the trimmed contents of the file named by fileKey,
// falling back to the value of directKey when fileKey is unset or the file
// cannot be read. MCHOST_PASS_FILE uses this for mounted secrets.
func getEnvOrFile(directKey, fileKey string) string {
	if path := os.Getenv(fileKey); path != "" {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}

// parseBool accepts true/false, 1/0, yes/no and on/off in any case.
// Anything else yields fallback.
func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}
