// Package webhook is the loopback HTTP surface: a small daemon exposing
// search, tag, node and stats endpoints over the workspace registry, with a
// text paste format by default and JSON on request.
package webhook

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/sterr"
)

// ServerConfig is the daemon's on-disk configuration (server.toml in the
// config directory).
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	LogFile      string `toml:"log_file"`
	LogMaxSizeMB int    `toml:"log_max_size_mb"`
	LogBackups   int    `toml:"log_backups"`
}

// ServerConfigPath is where the daemon config lives.
func ServerConfigPath() string {
	return filepath.Join(config.Dir(), "server.toml")
}

// LoadServerConfig reads server.toml, falling back to defaults when absent.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Host:         config.GetString("serve.host"),
		Port:         config.GetInt("serve.port"),
		LogFile:      filepath.Join(config.Dir(), "server.log"),
		LogMaxSizeMB: 10,
		LogBackups:   3,
	}
	if path == "" {
		path = ServerConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, sterr.Wrap(sterr.ConfigInvalid, err, "parse %s", path)
	}
	return cfg, nil
}
