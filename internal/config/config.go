// Package config is the viper-backed configuration singleton. Precedence is
// environment (ST_ prefix) over config file over defaults; the config file
// is ~/.config/supertag/config.yaml, overridable per invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tanatools/supertag/internal/debug"
)

var v *viper.Viper

// Dir returns the supertag state directory (~/.config/supertag by default,
// ST_HOME overrides).
func Dir() string {
	if home := os.Getenv("ST_HOME"); home != "" {
		return home
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "supertag")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".supertag")
}

// Initialize sets up the configuration singleton. Call once at startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configPath := filepath.Join(Dir(), "config.yaml")
	configFileSet := false
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		configFileSet = true
	}

	// ST_EXPORT_DIR maps to "export-dir" and so on.
	v.SetEnvPrefix("ST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("workspace", "")
	v.SetDefault("db", "")
	v.SetDefault("export-dir", "")
	v.SetDefault("schema-cache", "")
	v.SetDefault("debounce", "1s")
	v.SetDefault("lock-timeout", "10s")
	v.SetDefault("keep-exports", 3)

	// Write sink.
	v.SetDefault("token", "")
	v.SetDefault("target", "")
	v.SetDefault("endpoint", "")

	// Embedding.
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.batch-size", 32)
	v.SetDefault("embed.min-length", 3)
	v.SetDefault("embed.entities-only", false)

	// Webhook daemon.
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 7332)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("config: loaded %s", v.ConfigFileUsed())
	} else {
		debug.Logf("config: no config.yaml; defaults and environment only")
	}
	return nil
}

func ensure() {
	if v == nil {
		if err := Initialize(); err != nil {
			v = viper.New()
		}
	}
}

// GetString returns a string setting.
func GetString(key string) string {
	ensure()
	return v.GetString(key)
}

// GetBool returns a boolean setting.
func GetBool(key string) bool {
	ensure()
	return v.GetBool(key)
}

// GetInt returns an integer setting.
func GetInt(key string) int {
	ensure()
	return v.GetInt(key)
}

// GetDuration returns a duration setting.
func GetDuration(key string) time.Duration {
	ensure()
	return v.GetDuration(key)
}

// Set overrides a value at runtime (flag binding, tests).
func Set(key string, value interface{}) {
	ensure()
	v.Set(key, value)
}

// AllSettings returns the effective configuration map.
func AllSettings() map[string]interface{} {
	ensure()
	return v.AllSettings()
}
