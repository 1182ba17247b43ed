package config

import (
	"fmt"
	"net/url"
	"strings"
)

const redactedSuffix = "...redacted"

// FormatRedacted renders the resolved configuration with secrets masked so it
// can be printed during a config check.
func FormatRedacted(cfg Config) string {
	var b strings.Builder

	line := func(key string, value interface{}) {
		fmt.Fprintf(&b, "%s: %v\n", key, value)
	}

	line("app_env", cfg.AppEnv)
	line("log_level", cfg.LogLevel)
	line("http_port", cfg.HTTPPort)
	line("telegram_token", maskSecret(cfg.TelegramToken))
	line("privileged_handles", strings.Join(cfg.PrivilegedHandles, ","))
	line("storage_backend", cfg.StorageBackend)
	if cfg.StorageBackend == BackendMongo {
		line("mongo_uri", redactURI(cfg.MongoURI))
		line("mongo_db", cfg.MongoDB)
	} else {
		line("sqlite_path", cfg.SQLitePath)
	}
	line("smtp_host", cfg.SMTPHost)
	line("smtp_port", cfg.SMTPPort)
	line("smtp_username", cfg.SMTPUsername)
	line("smtp_password", maskSecret(cfg.SMTPPassword))
	line("smtp_from", cfg.SMTPFrom)
	line("hr_email", cfg.HREmail)
	line("resume_dir", cfg.ResumeDir)
	line("meeting_base_url", cfg.MeetingBaseURL)
	line("currency_unit", cfg.CurrencyUnit)

	return strings.TrimRight(b.String(), "\n")
}

// maskSecret keeps a short prefix for recognition and hides the rest.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return redactedSuffix
	}
	return value[:4] + redactedSuffix
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return redactedSuffix
	}
	parsed.User = nil
	return parsed.String()
}
