package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"gopkg.in/natefinch/lumberjack.v2"

	"retail-crawler/internal/types"
)

// Log file rotation limits
const (
	logMaxSizeMB  = 10
	logMaxBackups = 5
)

// NewLogger creates the process logger used by the commands
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel converts a LOG_LEVEL value, falling back to info
func ParseLevel(level string) logrus.Level {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		return parsed
	}
	return logrus.InfoLevel
}

// NewRetailerLogger creates the logger of one crawl. Entries at or above
// level go to the console; every entry goes to a rotating file
// <logDir>/<retailer>.log when logDir is set. The returned function
// closes the file.
func NewRetailerLogger(site *types.SiteConfig, logDir string, level string) (*logrus.Entry, func()) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetLevel(logrus.DebugLevel)

	consoleLevel := ParseLevel(level)
	if consoleLevel > logrus.DebugLevel {
		logger.SetLevel(consoleLevel)
	}
	logger.AddHook(&writer.Hook{
		Writer:    os.Stdout,
		LogLevels: logrus.AllLevels[:consoleLevel+1],
	})

	closeFn := func() {}
	if logDir != "" {
		name := site.Slug()
		if name == "" {
			name = "crawler"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", logDir, err)
		} else {
			file := &lumberjack.Logger{
				Filename:   filepath.Join(logDir, name+".log"),
				MaxSize:    logMaxSizeMB,
				MaxBackups: logMaxBackups,
			}
			logger.AddHook(&writer.Hook{
				Writer:    file,
				LogLevels: logrus.AllLevels,
			})
			closeFn = func() { _ = file.Close() }
		}
	}

	return logger.WithField("retailer", site.Name), closeFn
}
