package config

import (
	"os"
	"strconv"
	"strings"

	"retail-crawler/internal/types"
)

// Environment variables read by FromEnv
const (
	EnvConfigDir     = "CONFIG_DIR"
	EnvOutputDir     = "OUTPUT_DIR"
	EnvLogDir        = "LOG_DIR"
	EnvLogLevel      = "LOG_LEVEL"
	EnvMaxConcurrent = "MAX_CONCURRENT_CRAWLS"
	EnvDevMode       = "DEV_MODE"
	EnvDevPageLimit  = "DEV_PAGE_LIMIT"
)

// FromEnv returns the default process configuration overridden by the
// environment. Unparseable values keep their defaults.
func FromEnv() *types.Config {
	cfg := types.DefaultConfig()

	if v := os.Getenv(EnvConfigDir); v != "" {
		cfg.ConfigDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v, ok := os.LookupEnv(EnvLogDir); ok {
		cfg.LogDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if n, err := strconv.Atoi(os.Getenv(EnvMaxConcurrent)); err == nil && n > 0 {
		cfg.MaxConcurrentCrawls = n
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		cfg.DevMode = parseBool(v)
	}
	if n, err := strconv.Atoi(os.Getenv(EnvDevPageLimit)); err == nil && n > 0 {
		cfg.PageLimit = n
	}
	return cfg
}

// ApplyEnv injects the process dev-mode settings into a site
func ApplyEnv(site *types.SiteConfig, cfg *types.Config) {
	if cfg.DevMode {
		devMode := true
		site.DevMode = &devMode
	}
	if site.InDevMode() && site.PageLimit <= 0 {
		site.PageLimit = cfg.PageLimit
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
