// Package config loads ambient runner settings (actor identity, lock
// timeout, default max-steps, review toggle) the way the teacher loads
// its own config.yaml: a viper singleton, searched up the directory
// tree for a repo-local file, then user config dir, then home
// directory, with environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call once at
// startup, before any Get* accessor.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD to find <repo>/.inshallah/config.yaml.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".inshallah", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/inshallah/config.yaml).
	if !configFileSet {
		if configDir, cfgErr := os.UserConfigDir(); cfgErr == nil {
			configPath := filepath.Join(configDir, "inshallah", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.inshallah/config.yaml).
	if !configFileSet {
		if homeDir, homeErr := os.UserHomeDir(); homeErr == nil {
			configPath := filepath.Join(homeDir, ".inshallah", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("INSHALLAH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("actor", "")
	v.SetDefault("identity", "")
	v.SetDefault("lock-timeout", "30s")
	v.SetDefault("max-steps", 200)
	v.SetDefault("review.enabled", true)
	v.SetDefault("backend.default-cli", "codex")
	v.SetDefault("backend.default-model", "gpt-5.3-codex")
	v.SetDefault("backend.default-reasoning", "xhigh")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max-size-mb", 50)
	v.SetDefault("log.max-backups", 5)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value (tests, flag binding).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetIdentity resolves the user's identity for forum/event authorship.
// Priority chain:
//  1. flagValue (if non-empty, from --identity flag)
//  2. INSHALLAH_IDENTITY env var / config.yaml identity field
//  3. git config user.name
//  4. hostname
func GetIdentity(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if identity := GetString("identity"); identity != "" {
		return identity
	}
	if output, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if gitUser := strings.TrimSpace(string(output)); gitUser != "" {
			return gitUser
		}
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "unknown"
}
