// Package config loads kernel configuration from built-in defaults,
// .hive/config.yaml, and environment variables (HIVE_ prefix), in that
// increasing order of precedence. The loader itself is a thin wrapper
// around spf13/viper, the same library and walk-up-from-cwd discovery
// pattern the teacher uses for its own .beads/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Config is the resolved, typed view over the kernel's settings. Callers
// that need dynamic lookups (e.g. the admin CLI) can still use the
// package-level Get* functions directly against the loaded viper instance.
type Config struct {
	Backend         string // "sqlite" or "postgres"
	SQLitePath      string
	PostgresDSN     string
	ProjectKey      string
	SocketPath      string // non-empty enables the daemon's Unix-socket HTTP listener
	HTTPAddr        string
	NATSPort        int
	LockTimeout     time.Duration
	InboxBodyChars  int
	EmbedderURL     string
	EmbedderModel   string
	LogLevel        string
}

// Initialize sets up the viper singleton. Should be called once at
// process startup, mirroring the teacher's config.Initialize.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// Walk up from cwd looking for .hive/config.yaml, the same traversal
	// the teacher uses for .beads/config.yaml — lets subcommands run from
	// any subdirectory of a project.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".hive", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "hive", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("HIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", "sqlite")
	v.SetDefault("sqlite.path", ".hive/hive.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("project.key", "default")
	v.SetDefault("socket", "")
	v.SetDefault("http.addr", ":8420")
	v.SetDefault("nats.port", 0) // 0 means pick an ephemeral port for the embedded server
	v.SetDefault("lock-timeout", "30s")
	v.SetDefault("inbox.body-chars", 280)
	v.SetDefault("embedder.url", "http://localhost:11434")
	v.SetDefault("embedder.model", "mxbai-embed-large")
	v.SetDefault("log-level", "info")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

// Load returns the typed Config snapshot after Initialize has populated
// the viper singleton.
func Load() (*Config, error) {
	if v == nil {
		if err := Initialize(); err != nil {
			return nil, err
		}
	}
	lockTimeout, err := time.ParseDuration(v.GetString("lock-timeout"))
	if err != nil {
		return nil, fmt.Errorf("parse lock-timeout: %w", err)
	}
	return &Config{
		Backend:        v.GetString("backend"),
		SQLitePath:     v.GetString("sqlite.path"),
		PostgresDSN:    v.GetString("postgres.dsn"),
		ProjectKey:     v.GetString("project.key"),
		SocketPath:     v.GetString("socket"),
		HTTPAddr:       v.GetString("http.addr"),
		NATSPort:       v.GetInt("nats.port"),
		LockTimeout:    lockTimeout,
		InboxBodyChars: v.GetInt("inbox.body-chars"),
		EmbedderURL:    v.GetString("embedder.url"),
		EmbedderModel:  v.GetString("embedder.model"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}

// GetString, GetBool, GetInt expose raw viper lookups for callers (mainly
// cmd/hivectl) that need a single ad hoc setting outside the typed Config.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}
