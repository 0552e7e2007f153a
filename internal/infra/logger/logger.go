// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"regulatory_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// Init initializes the global logger based on application configuration.
func Init(cfg *config.AppConfig) {
	Configure(Log, os.Stdout, cfg.LogLevel, cfg.Environment)

	Log.Debugf("Log level set to: %s", Log.GetLevel().String())
	Log.Debugf("Log format set for environment: %s", cfg.Environment)
}

// Configure applies level and environment-specific formatting to l.
func Configure(l *logrus.Logger, out io.Writer, level, environment string) {
	l.SetOutput(out)

	// Set Log Level
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		l.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", level, err)
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetLevel(lvl)
	}

	// Set Log Formatter
	env := strings.ToLower(environment)
	if env == "production" || env == "staging" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	} else { // Development or other environments
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

