package types

import "time"

// StoreResult represents the crawl result for a single retailer
type StoreResult struct {
	StoreName string `json:"store_name"`
	Pages     int    `json:"pages"`
	Records   int    `json:"records"`
	Error     string `json:"error,omitempty"`
}

// ExtractionResult represents the complete result of a multi-retailer run
type ExtractionResult struct {
	Stores   []StoreResult `json:"stores"`
	Duration time.Duration `json:"duration"`
}

// Total returns the number of records persisted across all retailers
func (r ExtractionResult) Total() int {
	total := 0
	for _, s := range r.Stores {
		total += s.Records
	}
	return total
}

// Config holds the process-wide configuration for a crawl run
type Config struct {
	ConfigDir           string
	OutputDir           string
	LogDir              string
	LogLevel            string
	MaxConcurrentCrawls int
	DevMode             bool
	PageLimit           int
	UserAgent           string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ConfigDir:           "configs",
		OutputDir:           "data/raw",
		LogDir:              "logs",
		LogLevel:            "info",
		MaxConcurrentCrawls: 50,
		DevMode:             false,
		PageLimit:           1,
		UserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
