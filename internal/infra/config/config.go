package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver      string
	DatabaseURL         string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string   // defaults to SenderAddress
	SMTPInsecureTLS     bool
	SenderAddress       string
	SenderName          string
	AdminAddress        string   // copied on every candidate email when set
	PingAddresses       []string // receive the ping when a run sends nothing
	KeyFile             string
	CredentialFile      string
	AuditLogPath        string
	RulesFile           string   // optional YAML job definitions
	RunTimeout          time.Duration
	LogLevel            string
	Environment         string
	TelegramToken       string   // optional, enables operator alerts
	AlertTelegramChatID int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.DatabaseDriver = strings.ToLower(getenv("DATABASE_DRIVER", "postgres"))
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.SMTPHost = getenv("SMTP_HOST", "smtp.dreamhost.com")
	cfg.SMTPPort, err = strconv.Atoi(getenv("SMTP_PORT", "465"))
	if err != nil || cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("invalid SMTP_PORT %q", os.Getenv("SMTP_PORT"))
	}
	if v := os.Getenv("SMTP_INSECURE_SKIP_VERIFY"); v != "" {
		cfg.SMTPInsecureTLS, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_INSECURE_SKIP_VERIFY: %w", err)
		}
	}

	cfg.SenderAddress = strings.TrimSpace(os.Getenv("SENDER_ADDRESS"))
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("SENDER_ADDRESS is not set")
	}
	cfg.SenderName = os.Getenv("SENDER_NAME")
	cfg.SMTPUsername = getenv("SMTP_USERNAME", cfg.SenderAddress)
	cfg.AdminAddress = strings.TrimSpace(os.Getenv("ADMIN_ADDRESS"))

	cfg.PingAddresses = splitList(os.Getenv("PING_ADDRESSES"))
	if len(cfg.PingAddresses) == 0 {
		return nil, fmt.Errorf("PING_ADDRESSES is not set")
	}

	cfg.KeyFile = getenv("KEY_FILE", "key.key")
	cfg.CredentialFile = getenv("CREDENTIAL_FILE", "CredFile.ini")
	cfg.AuditLogPath = getenv("AUDIT_LOG_PATH", "regulatory.log")
	cfg.RulesFile = os.Getenv("RULES_FILE")

	cfg.RunTimeout, err = time.ParseDuration(getenv("RUN_TIMEOUT", "10m"))
	if err != nil || cfg.RunTimeout <= 0 {
		return nil, fmt.Errorf("invalid RUN_TIMEOUT %q", os.Getenv("RUN_TIMEOUT"))
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatID := os.Getenv("ALERT_TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.AlertTelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AlertTelegramChatID == 0 {
		return nil, fmt.Errorf("ALERT_TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// splitList splits a comma or semicolon separated list, dropping blanks.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
