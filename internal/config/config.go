package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	APIKey string

	// LocalReportDir, when set, is the only place reports are discovered.
	// Remote discovery is skipped entirely for such configurations.
	LocalReportDir string

	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	FolderPath   string

	CacheDir      string
	FileIndexTTL  time.Duration
	GraphCacheTTL time.Duration

	EnableCORS bool
	ServerPort string
}

// GetConfig returns the application configuration based on environment variables
func GetConfig() (*Config, error) {
	config := &Config{
		APIKey:         os.Getenv("API_KEY"),
		LocalReportDir: expandPath(os.Getenv("ONEDRIVE_LOCAL_PATH")),
		TenantID:       os.Getenv("MS_TENANT_ID"),
		ClientID:       os.Getenv("MS_CLIENT_ID"),
		ClientSecret:   os.Getenv("MS_CLIENT_SECRET"),
		DriveID:        os.Getenv("MS_DRIVE_ID"),
		FolderPath:     os.Getenv("MS_FOLDER_PATH"),
	}

	config.CacheDir = expandPath(os.Getenv("CACHE_DIR"))
	if config.CacheDir == "" {
		config.CacheDir = "cache"
	}

	config.FileIndexTTL = secondsFromEnv("FILE_INDEX_TTL", 60*time.Second)
	config.GraphCacheTTL = secondsFromEnv("GRAPH_CACHE_TTL", 900*time.Second)

	config.EnableCORS = boolFromEnv("ENABLE_CORS")

	config.ServerPort = os.Getenv("PORT")
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	return config, nil
}

// EnsureCacheDir creates the download cache directory if it doesn't exist
func (c *Config) EnsureCacheDir() error {
	return os.MkdirAll(c.CacheDir, 0755)
}

// expandPath trims surrounding quotes and expands a leading ~
func expandPath(raw string) string {
	path := raw
	if len(path) >= 2 && (path[0] == '"' || path[0] == '\'') && path[len(path)-1] == path[0] {
		path = path[1 : len(path)-1]
	}
	if path == "" {
		return ""
	}
	if path == "~" || (len(path) > 1 && path[:2] == "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	return path
}

func secondsFromEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

func boolFromEnv(key string) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return value
}
