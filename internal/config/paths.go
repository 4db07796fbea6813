package config

import (
	"flag"
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "MESHGRAPH_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "meshgraph.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "meshgraph"
	// FlagConfig names the flag that selects the config file
	FlagConfig = "config"
)

// FindConfigPath searches for config file in priority order:
// 1. $MESHGRAPH_CONFIG (explicit path)
// 2. ./meshgraph.yaml (working directory)
// 3. $XDG_CONFIG_HOME/meshgraph/config.yaml
// 4. ~/.config/meshgraph/config.yaml
// 5. /etc/meshgraph/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// RegisterFlags defines the command line flags. Flag names are config keys,
// so only flags given on the command line override the file.
func RegisterFlags(fs *flag.FlagSet) *string {
	def := DefaultConfig()
	path := fs.String(FlagConfig, "", "config file path (overrides the search path)")
	fs.String("listen_addr", def.ListenAddr, "HTTP listen address")
	fs.String("backend.url", def.Backend.URL, "mesh backend base URL")
	fs.Duration("backend.timeout", def.Backend.Timeout, "backend request timeout")
	fs.Duration("refresh.interval", def.Refresh.Interval, "refresh interval, 0 pauses")
	fs.String("view.namespaces", "", "comma separated namespaces to show at start")
	fs.String("history.path", def.History.Path, "fetch history database, empty disables")
	fs.String("log.level", def.Log.Level, "log level (trace, debug, info, warn, error)")
	fs.String("log.format", def.Log.Format, "log format (text, json)")
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
