package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// envAliases maps canonical CarePulse env vars to the names commonly
// found in existing .env files.
var envAliases = map[string][]string{
	"CAREPULSE_SCANNER_API_KEY":             {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"CAREPULSE_CHANNELS_TELEGRAM_BOT_TOKEN": {"TELEGRAM_BOT_TOKEN"},
	"CAREPULSE_CHANNELS_DISCORD_BOT_TOKEN":  {"DISCORD_BOT_TOKEN"},
	"CAREPULSE_SECURITY_JWT_SECRET":         {"JWT_SECRET"},
}

// LoadEnvFile reads a .env style file and sets any variables that are
// not already present in the environment. Existing values always win.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open env file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Strip surrounding quotes
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// ResolveEnvWithAliases returns the value of key, falling back to its
// known alias names when the canonical variable is unset.
func ResolveEnvWithAliases(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	for _, alias := range envAliases[key] {
		if val := os.Getenv(alias); val != "" {
			return val
		}
	}
	return ""
}

// GetEnvDefault returns the value of key or def when unset or empty.
func GetEnvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
