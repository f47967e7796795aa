package config

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	defaultListenAddr = "127.0.0.1:9863"
	settingsFilename  = "settings.json"
)

// AppConfig holds process configuration derived from the environment.
// Persisted user settings are a separate concern and live in the settings
// store.
type AppConfig struct {
	logger       *zap.Logger
	listenAddr   string
	settingsPath string
	cacheDir     string
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) *AppConfig {
	listenAddr := os.Getenv("TUNELINK_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	settingsPath := os.Getenv("TUNELINK_SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = filepath.Join(defaultConfigDir(), settingsFilename)
	}

	cacheDir := os.Getenv("TUNELINK_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "tunelink")
	}

	settingsPath = expandHome(os.ExpandEnv(settingsPath))
	cacheDir = expandHome(os.ExpandEnv(cacheDir))

	logger.Info("Configuration loaded",
		zap.String("listenAddr", listenAddr),
		zap.String("settingsPath", settingsPath),
		zap.String("cacheDir", cacheDir))

	return &AppConfig{
		logger:       logger,
		listenAddr:   listenAddr,
		settingsPath: settingsPath,
		cacheDir:     cacheDir,
	}
}

// GetListenAddr returns the companion gateway bind address
func (c *AppConfig) GetListenAddr() string {
	return c.listenAddr
}

// GetSettingsPath returns the settings file location
func (c *AppConfig) GetSettingsPath() string {
	return c.settingsPath
}

// GetCacheDir returns the directory for transient artifacts
func (c *AppConfig) GetCacheDir() string {
	return c.cacheDir
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tunelink")
	}
	return filepath.Join(os.TempDir(), "tunelink")
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
